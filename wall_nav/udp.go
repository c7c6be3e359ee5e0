package wall_nav

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// UDPLink is a FlightLink speaking CSV over UDP.
//
// Inbound packets:
//   - TEL,front,right,left,back,up,down,vx,vy,vz,vroll,vpitch,vyaw (empty lidar field = no sample)
//   - ACK,seq
//
// Outbound packets:
//   - CMD,seq,roll,pitch,yaw_rate,alt,wait
//   - TURN,seq,roll,pitch,yaw,wait
//   - MOVE,seq,dx,dy,dz,wait
//
// Waiting calls block until the peer acknowledges seq.
type UDPLink struct {
	cfg   UDPConfig
	in    *net.UDPConn
	out   *net.UDPConn
	store *telemetryStore
	seq   atomic.Uint32

	// Now is the staleness clock.
	Now func() time.Time
}

// DialUDPLink binds the telemetry listener and dials the command peer.
func DialUDPLink(cfg UDPConfig) (*UDPLink, error) {
	if cfg.ListenAddr == "" || cfg.CommandAddr == "" {
		return nil, fmt.Errorf("udp.listen_addr and udp.command_addr must be set")
	}
	inAddr, err := net.ResolveUDPAddr("udp", cfg.ListenAddr)
	if err != nil {
		return nil, err
	}
	outAddr, err := net.ResolveUDPAddr("udp", cfg.CommandAddr)
	if err != nil {
		return nil, err
	}
	in, err := net.ListenUDP("udp", inAddr)
	if err != nil {
		return nil, err
	}
	out, err := net.DialUDP("udp", nil, outAddr)
	if err != nil {
		_ = in.Close()
		return nil, err
	}

	l := &UDPLink{
		cfg:   cfg,
		in:    in,
		out:   out,
		store: newTelemetryStore(),
		Now:   time.Now,
	}
	go l.listen()
	return l, nil
}

// LocalAddr is the bound telemetry address.
func (l *UDPLink) LocalAddr() net.Addr {
	return l.in.LocalAddr()
}

// Close releases both sockets and stops the listener.
func (l *UDPLink) Close() error {
	return errors.Join(l.in.Close(), l.out.Close())
}

func (l *UDPLink) ReadLidars(ctx context.Context) (Lidars, error) {
	tel, ok := l.store.Snapshot(l.Now(), l.cfg.StaleAfter)
	if !ok {
		return Lidars{}, ctx.Err()
	}
	return tel.lidars, ctx.Err()
}

func (l *UDPLink) ReadVelocity(ctx context.Context) (Velocity, error) {
	tel, ok := l.store.Snapshot(l.Now(), l.cfg.StaleAfter)
	if !ok {
		return Velocity{}, ctx.Err()
	}
	return tel.vel, ctx.Err()
}

func (l *UDPLink) IssueCommand(ctx context.Context, cmd Command, wait bool) error {
	return l.send(ctx, "CMD", wait, cmd.Roll, cmd.Pitch, cmd.YawRate, cmd.Altitude)
}

func (l *UDPLink) TurnBy(ctx context.Context, roll, pitch, yaw float64, wait bool) error {
	return l.send(ctx, "TURN", wait, roll, pitch, yaw)
}

func (l *UDPLink) MoveBy(ctx context.Context, dx, dy, dz float64, wait bool) error {
	return l.send(ctx, "MOVE", wait, dx, dy, dz)
}

// send writes one command packet and, if wait, blocks for its ACK.
func (l *UDPLink) send(ctx context.Context, kind string, wait bool, values ...float64) error {
	seq := l.seq.Add(1)
	var ack <-chan struct{}
	if wait {
		ack = l.store.Expect(seq)
		defer l.store.Forget(seq)
	}

	if _, err := l.out.Write([]byte(formatCommand(kind, seq, wait, values...))); err != nil {
		return fmt.Errorf("send %s: %w", kind, err)
	}
	if !wait {
		return nil
	}

	timeout := l.cfg.WaitTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%s %d: no ack within %s", kind, seq, timeout)
	}
}

// listen ingests telemetry and acks until the socket closes.
func (l *UDPLink) listen() {
	bufSize := l.cfg.ReadBuffer
	if bufSize <= 0 {
		bufSize = 2048
	}
	buf := make([]byte, bufSize)
	for {
		n, _, err := l.in.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		pkt, err := parsePacket(buf[:n])
		if err != nil {
			continue
		}
		if pkt.ack != 0 {
			l.store.Ack(pkt.ack)
			continue
		}
		l.store.Update(pkt.tel, l.Now())
	}
}

type telemetry struct {
	lidars Lidars
	vel    Velocity
}

type telemetryStore struct {
	mu      sync.Mutex
	last    telemetry
	at      time.Time
	pending map[uint32]chan struct{}
}

func newTelemetryStore() *telemetryStore {
	return &telemetryStore{pending: map[uint32]chan struct{}{}}
}

// Update stores the latest telemetry received at at.
func (s *telemetryStore) Update(tel telemetry, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = tel
	s.at = at
}

// Snapshot returns the latest telemetry unless none arrived within staleAfter of now.
func (s *telemetryStore) Snapshot(now time.Time, staleAfter time.Duration) (telemetry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.at.IsZero() {
		return telemetry{}, false
	}
	if staleAfter > 0 && now.Sub(s.at) > staleAfter {
		return telemetry{}, false
	}
	return s.last, true
}

// Expect registers interest in the ack for seq.
func (s *telemetryStore) Expect(seq uint32) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	s.pending[seq] = ch
	return ch
}

// Forget drops the registration for seq.
func (s *telemetryStore) Forget(seq uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, seq)
}

// Ack releases the waiter for seq, if any.
func (s *telemetryStore) Ack(seq uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.pending[seq]; ok {
		close(ch)
		delete(s.pending, seq)
	}
}

type packet struct {
	tel telemetry
	ack uint32
}

// parsePacket parses one inbound CSV payload.
func parsePacket(b []byte) (packet, error) {
	s := strings.TrimSpace(string(b))
	if s == "" {
		return packet{}, errors.New("empty payload")
	}
	parts := strings.Split(s, ",")

	switch strings.ToUpper(strings.TrimSpace(parts[0])) {
	case "ACK":
		if len(parts) != 2 {
			return packet{}, fmt.Errorf("ack: expected 2 fields, got %d", len(parts))
		}
		seq, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 32)
		if err != nil {
			return packet{}, err
		}
		if seq == 0 {
			return packet{}, errors.New("ack: seq 0")
		}
		return packet{ack: uint32(seq)}, nil
	case "TEL":
		tel, err := parseTelemetry(parts[1:])
		if err != nil {
			return packet{}, err
		}
		return packet{tel: tel}, nil
	default:
		return packet{}, fmt.Errorf("unknown packet %q", parts[0])
	}
}

// parseTelemetry parses the six lidar and six velocity fields of a TEL packet.
func parseTelemetry(fields []string) (telemetry, error) {
	if len(fields) != int(numChannels)+6 {
		return telemetry{}, fmt.Errorf("telemetry: expected %d fields, got %d", int(numChannels)+6, len(fields))
	}

	var tel telemetry
	for i, c := range Channels {
		raw := strings.TrimSpace(fields[i])
		if raw == "" || strings.EqualFold(raw, "none") {
			tel.lidars[c] = NoReading
			continue
		}
		v, err := parseF64(raw)
		if err != nil {
			return telemetry{}, fmt.Errorf("lidar %s: %w", c, err)
		}
		tel.lidars[c] = Meters(v)
	}

	vel := make([]float64, 6)
	for i := range vel {
		v, err := parseF64(fields[int(numChannels)+i])
		if err != nil {
			return telemetry{}, fmt.Errorf("velocity field %d: %w", i, err)
		}
		vel[i] = v
	}
	tel.vel = Velocity{X: vel[0], Y: vel[1], Z: vel[2], Roll: vel[3], Pitch: vel[4], Yaw: vel[5]}
	return tel, nil
}

// formatCommand renders an outbound command packet.
func formatCommand(kind string, seq uint32, wait bool, values ...float64) string {
	var sb strings.Builder
	sb.WriteString(kind)
	sb.WriteByte(',')
	sb.WriteString(strconv.FormatUint(uint64(seq), 10))
	for _, v := range values {
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatFloat(v, 'f', 4, 64))
	}
	if wait {
		sb.WriteString(",1")
	} else {
		sb.WriteString(",0")
	}
	return sb.String()
}

// parseF64 parses a float from a CSV field.
func parseF64(value string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(value), 64)
}
