// Package progress renders upload progress: a redrawn bar on a terminal,
// periodic log lines anywhere else.
package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/stableftp/internal/client/uploader"
	"github.com/dmitrijs2005/stableftp/internal/logging"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

const barWidth = 30

// New picks a Bar when out is a terminal and a Log reporter otherwise.
func New(out *os.File, l logging.Logger) uploader.Reporter {
	if term.IsTerminal(int(out.Fd())) {
		return NewBar(out)
	}
	return NewLog(l, 10)
}

// Bar redraws a single line on every acknowledged packet.
type Bar struct {
	mu    sync.Mutex
	out   io.Writer
	name  string
	size  uint64
	total uint64
	done  uint64
	began time.Time
	now   func() time.Time
}

func NewBar(out io.Writer) *Bar {
	return &Bar{out: out, now: time.Now}
}

func (b *Bar) Start(name string, size, startPacket, totalPackets uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.name, b.size, b.total, b.done = name, size, totalPackets, startPacket
	b.began = b.now()
	b.draw()
}

func (b *Bar) Acknowledged(part uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done = part + 1
	b.draw()
}

func (b *Bar) Finish(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		fmt.Fprintf(b.out, "\n%s: upload stopped at packet %d/%d\n", b.name, b.done, b.total)
		return
	}
	fmt.Fprintf(b.out, "\n%s: done in %s\n", b.name, b.now().Sub(b.began).Round(time.Millisecond))
}

func (b *Bar) draw() {
	filled := barWidth
	pct := 100
	if b.total > 0 {
		filled = int(b.done * barWidth / b.total)
		pct = int(b.done * 100 / b.total)
	}
	sent := b.size
	if b.total > 0 && b.done < b.total {
		sent = b.size * b.done / b.total
	}
	fmt.Fprintf(b.out, "\r%s [%s%s] %3d%% %s/%s",
		b.name,
		strings.Repeat("=", filled), strings.Repeat(" ", barWidth-filled),
		pct, humanize.Bytes(sent), humanize.Bytes(b.size))
}

// Log reports progress through a logger every step percent.
type Log struct {
	mu     sync.Mutex
	logger logging.Logger
	step   uint64
	name   string
	total  uint64
	next   uint64
}

func NewLog(l logging.Logger, stepPercent uint64) *Log {
	if stepPercent == 0 || stepPercent > 100 {
		stepPercent = 10
	}
	return &Log{logger: l.With("module", "progress"), step: stepPercent}
}

func (r *Log) Start(name string, size, startPacket, totalPackets uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.name, r.total = name, totalPackets
	r.next = r.threshold(startPacket)
	r.logger.Info(context.Background(), "upload started", "file", name, "size", humanize.Bytes(size),
		"start_packet", startPacket, "total_packets", totalPackets)
}

// threshold returns the first percent mark above done packets.
func (r *Log) threshold(done uint64) uint64 {
	if r.total == 0 {
		return 100
	}
	pct := done * 100 / r.total
	return (pct/r.step + 1) * r.step
}

func (r *Log) Acknowledged(part uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.total == 0 {
		return
	}
	done := part + 1
	if pct := done * 100 / r.total; pct >= r.next {
		r.logger.Info(context.Background(), "upload progress", "file", r.name, "percent", pct, "packets", done, "total_packets", r.total)
		r.next = r.threshold(done)
	}
}

func (r *Log) Finish(err error) {
	if err != nil {
		r.logger.Warn(context.Background(), "upload stopped", "file", r.name, "error", err)
		return
	}
	r.logger.Info(context.Background(), "upload finished", "file", r.name)
}

var (
	_ uploader.Reporter = (*Bar)(nil)
	_ uploader.Reporter = (*Log)(nil)
)
