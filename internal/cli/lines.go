package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"research-chat/internal/tui"
	"research-chat/internal/view"
)

// lineSession is the orchestrator surface used by the line-oriented loop.
type lineSession interface {
	tui.Orchestrator
	WaitContext(ctx context.Context) error
}

// linePrinter writes newly committed events and status changes exactly once.
type linePrinter struct {
	mu      sync.Mutex
	out     io.Writer
	src     lineSession
	printed int
	status  string
}

func (p *linePrinter) flush() {
	p.mu.Lock()
	defer p.mu.Unlock()

	events := p.src.Snapshot()
	for _, ev := range events[p.printed:] {
		fmt.Fprintln(p.out, view.Plain(ev))
	}
	p.printed = len(events)

	if st := p.src.Flags().StatusMessage; st != p.status {
		p.status = st
		if st != "" {
			fmt.Fprintf(p.out, "[%s]\n", st)
		}
	}
}

func (p *linePrinter) notice(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "! %s\n", msg)
}

// runLines reads one input per line until EOF or /quit. Each chat turn
// settles before the next line is read; uploads run in the background and
// report their status as it changes. In-flight calls are awaited before
// returning, unless ctx is cancelled first.
func runLines(ctx context.Context, orch lineSession, open tui.DocumentOpener, in io.Reader, out io.Writer) error {
	p := &linePrinter{out: out, src: orch}

	changes, stop := orch.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range changes {
			p.flush()
		}
	}()
	finish := func() {
		stop()
		<-done
		p.flush()
	}

	idle, stopIdle := orch.Subscribe()
	defer stopIdle()

	quit := make(chan struct{})
	defer close(quit)
	lines, readErr := readLines(in, quit)
	eof := false

loop:
	for {
		var line string
		select {
		case <-ctx.Done():
			finish()
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				eof = true
				break loop
			}
			line = l
		}

		if name, arg, ok := view.Command(line); ok {
			if name == view.QuitCommand {
				break loop
			}
			if err := uploadLine(ctx, orch, open, arg); err != nil {
				p.notice(err.Error())
			}
			continue
		}

		accepted, err := orch.SubmitChatTurn(ctx, line)
		if err != nil {
			p.notice(err.Error())
			continue
		}
		if !accepted {
			continue
		}
		for orch.Flags().ChatPending {
			select {
			case <-idle:
			case <-ctx.Done():
				finish()
				return ctx.Err()
			}
		}
	}

	err := orch.WaitContext(ctx)
	finish()
	if err != nil {
		return err
	}
	if eof {
		if err := <-readErr; err != nil {
			return fmt.Errorf("read input: %w", err)
		}
	}
	return nil
}

// readLines scans in on its own goroutine so a blocked read never delays
// cancellation. Once lines is closed by EOF or a read failure, the error
// channel yields the scanner error. Closing quit abandons the input.
func readLines(in io.Reader, quit <-chan struct{}) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 64*1024), 1<<20)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-quit:
				return
			}
		}
		errc <- sc.Err()
	}()
	return lines, errc
}

func uploadLine(ctx context.Context, orch lineSession, open tui.DocumentOpener, path string) error {
	if !view.CanUpload(orch.Flags()) {
		return fmt.Errorf("an upload is already in progress")
	}
	if path == "" {
		return fmt.Errorf("usage: %s <path/to/paper.pdf>", view.UploadCommand)
	}
	doc, err := open(path)
	if err != nil {
		return err
	}
	_, err = orch.SubmitDocument(ctx, doc)
	return err
}
