// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hubproxy

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blang/semver"
)

var (
	ErrZAPClosed      = fmt.Errorf("zap: connection closed: %w", ErrTransportLost)
	ErrZAPInvalidResp = errors.New("zap: invalid response")
	ErrZAPTooLarge    = errors.New("zap: message too large")
)

// ProtocolVersion is the ZAP hub protocol version spoken by this package.
// Peers are compatible when their major versions match.
const ProtocolVersion = "1.0.0"

const (
	maxMessageSize   = 64 * 1024 * 1024 // 64MB max
	maxMethodLen     = math.MaxUint16
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 30 * time.Second
)

// MessageType identifies ZAP message types
type MessageType uint8

const (
	MsgRequest   MessageType = 0x01 // [4 reqID][2 methodLen][method][payload]
	MsgResponse  MessageType = 0x02 // [4 reqID][payload]
	MsgError     MessageType = 0x03 // [4 reqID][message]
	MsgNotify    MessageType = 0x04 // [2 methodLen][method][payload]
	MsgHandshake MessageType = 0x05 // [json]
	MsgCancel    MessageType = 0x06 // [4 reqID]
	MsgCanceled  MessageType = 0x07 // [4 reqID]
)

// ZAPConn is one side of a ZAP connection. Both peers may issue calls and
// notifications; inbound ones are passed to the handler.
type ZAPConn struct {
	conn     net.Conn
	handler  ZAPHandler
	writeMu  sync.Mutex
	pending  sync.Map // requestID -> chan *ZAPResponse
	inflight sync.Map // requestID -> context.CancelFunc
	nextID   atomic.Uint32
	closed   atomic.Bool
	readDone chan struct{}
	readErr  error
	ctx      context.Context
	cancel   context.CancelFunc
}

// ZAPResponse holds a response from a ZAP call
type ZAPResponse struct {
	Data []byte
	Err  error
}

// ZAPHandler handles ZAP requests
type ZAPHandler interface {
	HandleZAP(ctx context.Context, method string, payload []byte) ([]byte, error)
}

// ZAPHandlerFunc is a function adapter for ZAPHandler
type ZAPHandlerFunc func(ctx context.Context, method string, payload []byte) ([]byte, error)

func (f ZAPHandlerFunc) HandleZAP(ctx context.Context, method string, payload []byte) ([]byte, error) {
	return f(ctx, method, payload)
}

// NewZAPConn wraps an established, handshaken connection. Call Start to
// begin reading.
func NewZAPConn(conn net.Conn, handler ZAPHandler) *ZAPConn {
	ctx, cancel := context.WithCancel(context.Background())
	return &ZAPConn{
		conn:     conn,
		handler:  handler,
		readDone: make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// ZAPDial connects to a ZAP hub server, performs the handshake and starts
// reading. handler may be nil when no inbound calls are expected.
func ZAPDial(ctx context.Context, addr string, handler ZAPHandler) (*ZAPConn, string, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, "", fmt.Errorf("zap dial: %w", err)
	}
	id, err := clientHandshake(ctx, conn, ProtocolVersion)
	if err != nil {
		conn.Close()
		return nil, "", err
	}
	zc := NewZAPConn(conn, handler)
	zc.Start()
	return zc, id, nil
}

// Start starts the read loop
func (z *ZAPConn) Start() {
	go z.readLoop()
}

// Done is closed when the read loop has stopped
func (z *ZAPConn) Done() <-chan struct{} {
	return z.readDone
}

// Err returns why the read loop stopped. Valid after Done is closed.
func (z *ZAPConn) Err() error {
	<-z.readDone
	return z.readErr
}

// Call makes a ZAP RPC call
func (z *ZAPConn) Call(ctx context.Context, method string, payload []byte) ([]byte, error) {
	if z.closed.Load() {
		return nil, ErrZAPClosed
	}
	if err := checkOutbound(4, method, payload); err != nil {
		return nil, err
	}

	requestID := z.nextID.Add(1)
	respCh := make(chan *ZAPResponse, 1)
	z.pending.Store(requestID, respCh)
	defer z.pending.Delete(requestID)

	if err := z.writeMessage(MsgRequest, encodeRequest(requestID, method, payload)); err != nil {
		return nil, fmt.Errorf("zap write: %w", err)
	}

	select {
	case <-ctx.Done():
		// best effort, the peer may already be done
		_ = z.writeMessage(MsgCancel, encodeReply(requestID, nil))
		return nil, ctx.Err()
	case resp := <-respCh:
		if resp.Err != nil {
			var remote *RemoteError
			if errors.As(resp.Err, &remote) {
				remote.Method = method
			}
			return nil, resp.Err
		}
		return resp.Data, nil
	case <-z.readDone:
		return nil, ErrZAPClosed
	}
}

// Notify sends a one-way notification (no response expected)
func (z *ZAPConn) Notify(ctx context.Context, method string, payload []byte) error {
	if z.closed.Load() {
		return ErrZAPClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkOutbound(0, method, payload); err != nil {
		return err
	}
	return z.writeMessage(MsgNotify, encodeNotify(method, payload))
}

func (z *ZAPConn) readLoop() {
	defer close(z.readDone)
	defer z.cancel()

	for {
		msgType, msg, err := readMessage(z.conn)
		if err != nil {
			z.readErr = err
			return
		}

		switch msgType {
		case MsgResponse, MsgError, MsgCanceled:
			if len(msg) < 4 {
				continue
			}
			requestID := binary.BigEndian.Uint32(msg[0:4])
			payload := msg[4:]
			ch, ok := z.pending.Load(requestID)
			if !ok {
				continue
			}
			resp := &ZAPResponse{Data: payload}
			switch msgType {
			case MsgError:
				resp = &ZAPResponse{Err: &RemoteError{Message: string(payload)}}
			case MsgCanceled:
				resp = &ZAPResponse{Err: ErrCanceled}
			}
			select {
			case ch.(chan *ZAPResponse) <- resp:
			default:
			}

		case MsgRequest:
			requestID, method, payload, ok := decodeRequest(msg)
			if !ok {
				continue
			}
			ctx, cancel := context.WithCancel(z.ctx)
			z.inflight.Store(requestID, cancel)
			go func() {
				defer cancel()
				defer z.inflight.Delete(requestID)
				data, err := z.handle(ctx, method, payload)
				z.sendResponse(requestID, data, err)
			}()

		case MsgNotify:
			method, payload, ok := decodeNotify(msg)
			if !ok {
				continue
			}
			go z.handle(z.ctx, method, payload)

		case MsgCancel:
			if len(msg) < 4 {
				continue
			}
			if cancel, ok := z.inflight.Load(binary.BigEndian.Uint32(msg[0:4])); ok {
				cancel.(context.CancelFunc)()
			}
		}
	}
}

func (z *ZAPConn) handle(ctx context.Context, method string, payload []byte) ([]byte, error) {
	if z.handler == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
	return z.handler.HandleZAP(ctx, method, payload)
}

func (z *ZAPConn) sendResponse(requestID uint32, data []byte, err error) {
	msgType := MsgResponse
	payload := data
	switch {
	case err == nil:
	case IsCancellation(err):
		msgType = MsgCanceled
		payload = nil
	default:
		msgType = MsgError
		payload = []byte(err.Error())
	}
	if 1+4+len(payload) > maxMessageSize {
		msgType = MsgError
		payload = []byte(fmt.Sprintf("%v: reply of %d bytes", ErrZAPTooLarge, len(payload)))
	}
	_ = z.writeMessage(msgType, encodeReply(requestID, payload))
}

// checkOutbound rejects calls whose frame the peer could not parse. prefix
// is the size of the request id, if any.
func checkOutbound(prefix int, method string, payload []byte) error {
	if len(method) > maxMethodLen {
		return fmt.Errorf("%w: method name of %d bytes", ErrZAPTooLarge, len(method))
	}
	if n := 1 + prefix + 2 + len(method) + len(payload); n > maxMessageSize {
		return fmt.Errorf("%w: %d bytes", ErrZAPTooLarge, n)
	}
	return nil
}

func (z *ZAPConn) writeMessage(msgType MessageType, body []byte) error {
	z.writeMu.Lock()
	defer z.writeMu.Unlock()
	z.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return writeMessage(z.conn, msgType, body)
}

// Close closes the connection
func (z *ZAPConn) Close() error {
	if z.closed.Swap(true) {
		return nil
	}
	return z.conn.Close()
}

// writeMessage frames body as [4 len][1 type][body].
func writeMessage(w io.Writer, msgType MessageType, body []byte) error {
	msgLen := 1 + len(body)
	buf := make([]byte, 4+msgLen)
	binary.BigEndian.PutUint32(buf[0:4], uint32(msgLen))
	buf[4] = byte(msgType)
	copy(buf[5:], body)
	_, err := w.Write(buf)
	return err
}

func readMessage(r io.Reader) (MessageType, []byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}
	msgLen := binary.BigEndian.Uint32(header)
	if msgLen == 0 || msgLen > maxMessageSize {
		return 0, nil, fmt.Errorf("zap: invalid message length %d", msgLen)
	}
	msg := make([]byte, msgLen)
	if _, err := io.ReadFull(r, msg); err != nil {
		return 0, nil, err
	}
	return MessageType(msg[0]), msg[1:], nil
}

func encodeRequest(requestID uint32, method string, payload []byte) []byte {
	buf := make([]byte, 4+2+len(method)+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], requestID)
	binary.BigEndian.PutUint16(buf[4:6], uint16(len(method)))
	copy(buf[6:], method)
	copy(buf[6+len(method):], payload)
	return buf
}

func decodeRequest(msg []byte) (uint32, string, []byte, bool) {
	if len(msg) < 6 {
		return 0, "", nil, false
	}
	requestID := binary.BigEndian.Uint32(msg[0:4])
	method, payload, ok := decodeNotify(msg[4:])
	return requestID, method, payload, ok
}

func encodeNotify(method string, payload []byte) []byte {
	buf := make([]byte, 2+len(method)+len(payload))
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(method)))
	copy(buf[2:], method)
	copy(buf[2+len(method):], payload)
	return buf
}

func decodeNotify(msg []byte) (string, []byte, bool) {
	if len(msg) < 2 {
		return "", nil, false
	}
	methodLen := int(binary.BigEndian.Uint16(msg[0:2]))
	if len(msg) < 2+methodLen {
		return "", nil, false
	}
	return string(msg[2 : 2+methodLen]), msg[2+methodLen:], true
}

func encodeReply(requestID uint32, payload []byte) []byte {
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], requestID)
	copy(buf[4:], payload)
	return buf
}

type handshakeRequest struct {
	Version string `json:"version"`
}

type handshakeResponse struct {
	Version      string `json:"version"`
	ConnectionID string `json:"connectionId,omitempty"`
	Error        string `json:"error,omitempty"`
}

// clientHandshake announces version and returns the connection id
// assigned by the server.
func clientHandshake(ctx context.Context, conn net.Conn, version string) (string, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(handshakeTimeout)
	}
	conn.SetDeadline(deadline)
	defer conn.SetDeadline(time.Time{})

	req, err := json.Marshal(handshakeRequest{Version: version})
	if err != nil {
		return "", err
	}
	if err := writeMessage(conn, MsgHandshake, req); err != nil {
		return "", fmt.Errorf("zap handshake: %w", err)
	}
	msgType, msg, err := readMessage(conn)
	if err != nil {
		return "", fmt.Errorf("zap handshake: %w", err)
	}
	if msgType != MsgHandshake {
		return "", ErrZAPInvalidResp
	}
	var resp handshakeResponse
	if err := json.Unmarshal(msg, &resp); err != nil {
		return "", fmt.Errorf("zap handshake: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrIncompatibleVersion, resp.Error)
	}
	return resp.ConnectionID, nil
}

// serverHandshake checks the client's version against ProtocolVersion and
// acknowledges with connectionID.
func serverHandshake(conn net.Conn, connectionID string) error {
	conn.SetDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetDeadline(time.Time{})

	msgType, msg, err := readMessage(conn)
	if err != nil {
		return fmt.Errorf("zap handshake: %w", err)
	}
	if msgType != MsgHandshake {
		return fmt.Errorf("zap handshake: unexpected message type %d", msgType)
	}
	var req handshakeRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		return fmt.Errorf("zap handshake: %w", err)
	}

	resp := handshakeResponse{Version: ProtocolVersion}
	compatErr := checkVersion(req.Version)
	if compatErr != nil {
		resp.Error = compatErr.Error()
	} else {
		resp.ConnectionID = connectionID
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if err := writeMessage(conn, MsgHandshake, data); err != nil {
		return fmt.Errorf("zap handshake: %w", err)
	}
	return compatErr
}

func checkVersion(peer string) error {
	local := semver.MustParse(ProtocolVersion)
	remote, err := semver.Parse(peer)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrIncompatibleVersion, peer, err)
	}
	if remote.Major != local.Major {
		return fmt.Errorf("%w: peer %s, local %s", ErrIncompatibleVersion, remote, local)
	}
	return nil
}
