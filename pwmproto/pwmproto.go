// Package pwmproto drives PWM lines over a byte stream, such as a
// serial port, with CBOR encoded requests and responses.
package pwmproto

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"rpipwm.org/pwmchip"
)

type Op uint8

const (
	OpLines Op = iota + 1
	OpState
	OpApply
	OpConfig
	OpEnable
	OpDisable
	OpPolarity
)

// Request is a call addressed to a line by number. Durations are in
// nanoseconds.
type Request struct {
	_        struct{} `cbor:",toarray"`
	ID       uint32
	Op       Op
	Line     int
	Period   int64
	Duty     int64
	Polarity int
	Enabled  bool
}

type Response struct {
	_     struct{} `cbor:",toarray"`
	ID    uint32
	Err   string
	State State
	Lines []LineInfo
}

type State struct {
	_        struct{} `cbor:",toarray"`
	Period   int64
	Duty     int64
	Polarity int
	Enabled  bool
}

type LineInfo struct {
	_      struct{} `cbor:",toarray"`
	Number int
	Name   string
	Label  string
}

func fromState(s pwmchip.State) State {
	return State{
		Period:   int64(s.Period),
		Duty:     int64(s.Duty),
		Polarity: int(s.Polarity),
		Enabled:  s.Enabled,
	}
}

func (s State) state() pwmchip.State {
	return pwmchip.State{
		Period:   time.Duration(s.Period),
		Duty:     time.Duration(s.Duty),
		Polarity: pwmchip.Polarity(s.Polarity),
		Enabled:  s.Enabled,
	}
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Serve answers requests from rw against the lines of reg until rw
// reaches EOF.
func Serve(rw io.ReadWriter, reg *pwmchip.Registry) error {
	dec := decMode.NewDecoder(rw)
	enc := encMode.NewEncoder(rw)
	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("pwmproto: %w", err)
		}
		resp := handle(reg, req)
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("pwmproto: %w", err)
		}
	}
}

func handle(reg *pwmchip.Registry, req Request) Response {
	resp := Response{ID: req.ID}
	if req.Op == OpLines {
		for _, l := range reg.Lines() {
			resp.Lines = append(resp.Lines, LineInfo{
				Number: l.Number(),
				Name:   l.String(),
				Label:  l.Label(),
			})
		}
		return resp
	}
	l, err := reg.Line(req.Line)
	if err != nil {
		resp.Err = err.Error()
		return resp
	}
	switch req.Op {
	case OpState:
	case OpApply:
		err = l.Apply(pwmchip.State{
			Period:   time.Duration(req.Period),
			Duty:     time.Duration(req.Duty),
			Polarity: pwmchip.Polarity(req.Polarity),
			Enabled:  req.Enabled,
		})
	case OpConfig:
		err = l.Config(time.Duration(req.Duty), time.Duration(req.Period))
	case OpEnable:
		err = l.Enable()
	case OpDisable:
		err = l.Disable()
	case OpPolarity:
		err = l.SetPolarity(pwmchip.Polarity(req.Polarity))
	default:
		err = fmt.Errorf("pwmproto: unknown operation %d", req.Op)
	}
	if err != nil {
		resp.Err = err.Error()
	}
	resp.State = fromState(l.State())
	return resp
}

// RemoteError is an error reported by the server.
type RemoteError string

func (e RemoteError) Error() string {
	return "pwmproto: remote: " + string(e)
}

// Client issues requests to a Server.
type Client struct {
	mu  sync.Mutex
	enc *cbor.Encoder
	dec *cbor.Decoder
	id  uint32
}

func NewClient(rw io.ReadWriter) *Client {
	return &Client{
		enc: encMode.NewEncoder(rw),
		dec: decMode.NewDecoder(rw),
	}
}

func (c *Client) call(req Request) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id++
	req.ID = c.id
	if err := c.enc.Encode(req); err != nil {
		return Response{}, fmt.Errorf("pwmproto: %w", err)
	}
	var resp Response
	if err := c.dec.Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("pwmproto: %w", err)
	}
	if resp.ID != req.ID {
		return Response{}, fmt.Errorf("pwmproto: response %d to request %d", resp.ID, req.ID)
	}
	if resp.Err != "" {
		return resp, RemoteError(resp.Err)
	}
	return resp, nil
}

func (c *Client) Lines() ([]LineInfo, error) {
	resp, err := c.call(Request{Op: OpLines})
	return resp.Lines, err
}

func (c *Client) State(line int) (pwmchip.State, error) {
	resp, err := c.call(Request{Op: OpState, Line: line})
	return resp.State.state(), err
}

func (c *Client) Apply(line int, s pwmchip.State) error {
	_, err := c.call(Request{
		Op:       OpApply,
		Line:     line,
		Period:   int64(s.Period),
		Duty:     int64(s.Duty),
		Polarity: int(s.Polarity),
		Enabled:  s.Enabled,
	})
	return err
}

func (c *Client) Config(line int, duty, period time.Duration) error {
	_, err := c.call(Request{Op: OpConfig, Line: line, Duty: int64(duty), Period: int64(period)})
	return err
}

func (c *Client) Enable(line int) error {
	_, err := c.call(Request{Op: OpEnable, Line: line})
	return err
}

func (c *Client) Disable(line int) error {
	_, err := c.call(Request{Op: OpDisable, Line: line})
	return err
}

func (c *Client) SetPolarity(line int, p pwmchip.Polarity) error {
	_, err := c.call(Request{Op: OpPolarity, Line: line, Polarity: int(p)})
	return err
}
