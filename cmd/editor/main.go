// Command editor is a line-oriented terminal client for one document.
//
// Every line read from stdin replaces the document content. A line of the form
// ":title <new title>" renames the document and ":show" prints the local copy.
// Remote changes picked up by polling are printed as they arrive.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"docsync/internal/config"
	"docsync/internal/logger"
	"docsync/internal/model"
	"docsync/internal/otel"
	"docsync/internal/service"
	"docsync/internal/syncclient"
)

func main() {
	cfg := config.LoadClient()
	log := logger.NewWithWriter(os.Stderr, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, "docsync-editor", log)
	if err != nil {
		log.Fatal("tracing_init_failed", zap.Error(err))
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	if err := run(ctx, cfg, os.Args[1:], os.Stdin, os.Stdout, log); err != nil {
		fmt.Fprintln(os.Stderr, "editor:", err)
		os.Exit(1)
	}
}

// run parses flags, opens a session and feeds it stdin until EOF or ctx ends.
func run(ctx context.Context, cfg *config.ClientConfig, args []string, in io.Reader, out io.Writer, log *zap.Logger) error {
	fs := flag.NewFlagSet("editor", flag.ContinueOnError)
	fs.SetOutput(out)
	apiURL := fs.String("api", cfg.BaseURL, "document API base URL")
	id := fs.String("id", "", "document id to open")
	title := fs.String("title", "", "title for a new document when -id is not given")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client := syncclient.NewClient(*apiURL, cfg.RequestTimeout)

	docID := *id
	if docID == "" {
		if *title == "" {
			return errors.New("either -id or -title is required")
		}
		doc, err := client.Create(ctx, service.CreateInput{Title: *title})
		if err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		docID = doc.ID
		fmt.Fprintf(out, "created %s\n", docID)
	}

	p := &printer{w: out}
	sess, err := syncclient.Open(ctx, client, docID, syncclient.Options{
		Debounce:       cfg.Debounce,
		PollInterval:   cfg.PollInterval,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         log,
		OnChange:       p.refresh,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", docID, err)
	}
	defer sess.Close()

	p.show(sess.Document())

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return flush(sess)
		case line, ok := <-lines:
			if !ok {
				return flush(sess)
			}
			if err := apply(sess, line, p); err != nil {
				p.println("error:", err)
			}
			if sess.Deleted() {
				p.println("document was deleted")
				return nil
			}
		}
	}
}

func apply(sess *syncclient.Session, line string, p *printer) error {
	switch {
	case strings.HasPrefix(line, ":title "):
		return sess.SetTitle(strings.TrimSpace(strings.TrimPrefix(line, ":title ")))
	case line == ":show":
		p.show(sess.Document())
		return nil
	default:
		return sess.Edit(line)
	}
}

// flush sends the last edit with a fresh deadline so an interrupt does not drop it.
func flush(sess *syncclient.Session) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sess.Flush(ctx); err != nil && !errors.Is(err, syncclient.ErrClosed) {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

// printer serializes output from the input loop and session callbacks.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *printer) println(a ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, a...)
}

func (p *printer) show(doc model.Document) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "[%s] %s (updated %s)\n%s\n", doc.ID, doc.Title, doc.UpdatedAt.Format(time.RFC3339), doc.Content)
}

func (p *printer) refresh(doc model.Document) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "~ %s: %s\n", doc.Title, doc.Content)
}
