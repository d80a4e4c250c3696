package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/coder/websocket"
)

// command is the sum type flowing from the orchestrator to the keepalive
// worker over the command channel.
type command interface{ isCommand() }

type sendMessageCmd struct{ payload any }
type sequenceCmd struct{ seq int }
type changeIntervalCmd struct{ ms int }
type changeSenderCmd struct{ conn *websocket.Conn }

func (sendMessageCmd) isCommand()   {}
func (sequenceCmd) isCommand()      {}
func (changeIntervalCmd) isCommand() {}
func (changeSenderCmd) isCommand()  {}

// commandChannel is an unbounded, multi-producer/single-consumer, FIFO
// queue. Go channels are bounded, so this wraps an internal goroutine-fed
// queue to give callers a "never blocks, never drops" guarantee for
// SendMessage/Sequence/etc senders.
type commandChannel struct {
	in     chan command
	out    chan command
	closed chan struct{}
}

func newCommandChannel() *commandChannel {
	cc := &commandChannel{
		in:     make(chan command, 1),
		out:    make(chan command, 1),
		closed: make(chan struct{}),
	}
	go cc.pump()
	return cc
}

// pump relays from `in` to `out` through an unbounded internal slice so
// that sends to `in` never block on a slow/stuck consumer.
func (cc *commandChannel) pump() {
	defer close(cc.out)
	var queue []command
	for {
		if len(queue) == 0 {
			cmd, ok := <-cc.in
			if !ok {
				return
			}
			queue = append(queue, cmd)
			continue
		}
		select {
		case cmd, ok := <-cc.in:
			if !ok {
				for _, c := range queue {
					cc.out <- c
				}
				return
			}
			queue = append(queue, cmd)
		case cc.out <- queue[0]:
			queue = queue[1:]
		}
	}
}

// send enqueues a command; it is a no-op once the channel has been closed,
// matching the invariant that the worker terminates iff the channel is
// dropped and nothing sent after that point is lossy in an observable way.
func (cc *commandChannel) send(cmd command) {
	select {
	case <-cc.closed:
		return
	default:
	}
	select {
	case cc.in <- cmd:
	case <-cc.closed:
	}
}

// close drops the channel; the keepalive worker observes this and exits.
func (cc *commandChannel) close() {
	select {
	case <-cc.closed:
		return
	default:
		close(cc.closed)
		close(cc.in)
	}
}

// heartbeatTimer tracks period boundaries the way original_source's
// Timer/check_tick does: each call to due(now) reports whether a period
// has elapsed since the last tick, and advances internal state if so.
type heartbeatTimer struct {
	interval time.Duration
	next     time.Time
}

func newHeartbeatTimer(interval time.Duration, now time.Time) *heartbeatTimer {
	return &heartbeatTimer{interval: interval, next: now.Add(interval)}
}

func (t *heartbeatTimer) due(now time.Time) bool {
	if t.interval <= 0 {
		return false
	}
	if now.Before(t.next) {
		return false
	}
	t.next = now.Add(t.interval)
	return true
}

func (t *heartbeatTimer) reset(interval time.Duration, now time.Time) {
	t.interval = interval
	t.next = now.Add(interval)
}

// keepaliveLoopInterval bounds how long the worker sleeps between polls of
// the command channel and the heartbeat timer.
const keepaliveLoopInterval = 100 * time.Millisecond

// keepalive owns the outbound half of the connection: it is the only
// goroutine that ever writes to the transport. It runs until its
// command channel is closed.
type keepalive struct {
	conn     *websocket.Conn
	timer    *heartbeatTimer
	lastSeq  int
	commands *commandChannel
	logger   *slog.Logger
}

func newKeepalive(conn *websocket.Conn, interval time.Duration, commands *commandChannel, logger *slog.Logger) *keepalive {
	return &keepalive{
		conn:     conn,
		timer:    newHeartbeatTimer(interval, time.Now()),
		commands: commands,
		logger:   logger,
	}
}

// run is the worker's loop body: sleep briefly, drain the command
// channel non-blockingly applying every queued command in order, then emit
// a heartbeat if the timer is due. It never reads from the transport, and
// it terminates only when the command channel is closed; there is
// deliberately no separate context-cancellation exit so that invariant
// stays exact.
func (k *keepalive) run(ctx context.Context) {
	ticker := time.NewTicker(keepaliveLoopInterval)
	defer ticker.Stop()

	for range ticker.C {
		if !k.drainCommands() {
			k.shutdownWriter()
			return
		}

		if k.timer.due(time.Now()) {
			k.sendHeartbeat(ctx)
		}
	}
}

// drainCommands applies every queued command in FIFO order without
// blocking. It returns false once the channel has been observed closed,
// at which point the worker shuts down the writer and exits.
func (k *keepalive) drainCommands() bool {
	for {
		select {
		case cmd, ok := <-k.commands.out:
			if !ok {
				return false
			}
			k.apply(cmd)
		default:
			return true
		}
	}
}

func (k *keepalive) apply(cmd command) {
	switch c := cmd.(type) {
	case sendMessageCmd:
		if err := sendJSON(context.Background(), k.conn, c.payload); err != nil {
			k.logger.Warn("keepalive: send failed", "error", err)
		}
	case sequenceCmd:
		k.lastSeq = c.seq
	case changeIntervalCmd:
		k.timer.reset(time.Duration(c.ms)*time.Millisecond, time.Now())
	case changeSenderCmd:
		k.conn = c.conn
	}
}

func (k *keepalive) sendHeartbeat(ctx context.Context) {
	var seq *int
	if k.lastSeq > 0 {
		s := k.lastSeq
		seq = &s
	}
	frame := heartbeatFrame{Op: OpHeartbeat, Data: seq}
	if err := sendJSON(ctx, k.conn, frame); err != nil {
		k.logger.Warn("keepalive: heartbeat send failed", "error", err)
	}
}

func (k *keepalive) shutdownWriter() {
	if k.conn != nil {
		_ = k.conn.Close(websocket.StatusNormalClosure, "keepalive stopped")
	}
}
