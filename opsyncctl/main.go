package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"
	"golang.org/x/term"

	"github.com/bringyour/opsync/opsync"
)

const OpsyncCtlVersion = "0.0.1"

const DefaultSinkAddr = "127.0.0.1:8480"

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
}

func main() {
	usage := fmt.Sprintf(`Operation sync control.

The default sink address is %s.

Usage:
    opsyncctl demo [--filter=<path>...] [--frames]
    opsyncctl send --url=<url> --jwt=<jwt> [--filter=<path>...]
    opsyncctl sink [--addr=<addr>] --jwt_secret=<secret>
        [--message_count=<message_count>]
    opsyncctl token --jwt_secret=<secret> [--session_id=<session_id>]

Options:
    -h --help                        Show this screen.
    --version                        Show version.
    --filter=<path>                  Publish only these property paths.
    --frames                         Print the wire frame of each operation.
    --url=<url>                      Websocket sink url, e.g. ws://%s/
    --jwt=<jwt>                      Session JWT from the token command.
    --addr=<addr>                    Listen address.
    --jwt_secret=<secret>            Secret used to sign session JWTs.
    --message_count=<message_count>  Print this many operations then exit.
    --session_id=<session_id>        Session id. A new one is generated by default.`,
		DefaultSinkAddr,
		DefaultSinkAddr,
	)

	opts, err := docopt.ParseArgs(usage, os.Args[1:], OpsyncCtlVersion)
	if err != nil {
		panic(err)
	}

	if demo_, _ := opts.Bool("demo"); demo_ {
		demo(opts)
	} else if send_, _ := opts.Bool("send"); send_ {
		send(opts)
	} else if sink_, _ := opts.Bool("sink"); sink_ {
		sink(opts)
	} else if token_, _ := opts.Bool("token"); token_ {
		token(opts)
	}
}

func filterOpt(opts docopt.Opts) *opsync.PathFilter {
	paths, _ := opts["--filter"].([]string)
	if len(paths) == 0 {
		return nil
	}
	return opsync.NewPathFilter(paths...)
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// frameSink prints the wire frame of each operation
type frameSink struct {
}

func (self *frameSink) OnNext(op opsync.SyncOperation) {
	frame, err := opsync.EncodeOperation(op)
	if err != nil {
		Err.Printf("%s frame error = %s\n", opsync.OperationString(op), err)
		return
	}
	Out.Printf("%s (%d bytes) %s\n", opsync.OperationString(op), len(frame), hex.EncodeToString(frame))
}

func (self *frameSink) OnCompleted() {
}

// build the demo scene, run the scripted edits, print operations
func demo(opts docopt.Opts) {
	frames, _ := opts.Bool("--frames")

	session := opsync.NewSessionWithDefaults()
	scene := newScene("Untitled")

	var observer opsync.Observer
	if frames {
		observer = &frameSink{}
	} else {
		observer = opsync.NewJsonLinesSink(os.Stdout, isTerminal())
	}

	publisher, err := session.NewPublisher(observer, scene, "", filterOpt(opts))
	if err != nil {
		Err.Printf("Could not publish the scene (%s).\n", err)
		os.Exit(1)
	}
	defer publisher.Close()

	if err := editScene(session, scene); err != nil {
		Err.Printf("Edit error (%s).\n", err)
		os.Exit(1)
	}
	Err.Printf("Published %d operations.\n", session.Sequence().Last())
}

// publish the demo session to a websocket sink
func send(opts docopt.Opts) {
	url, _ := opts.String("--url")
	jwt, _ := opts.String("--jwt")

	sessionJwt, err := opsync.ParseSessionJwtUnverified(jwt)
	if err != nil {
		Err.Printf("Invalid JWT (%s).\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	wsSink, err := opsync.DialWebSocketSinkWithDefaults(ctx, url, jwt)
	if err != nil {
		Err.Printf("Could not connect to %s (%s).\n", url, err)
		os.Exit(1)
	}
	defer wsSink.Close()

	session := opsync.NewSessionWithId(sessionJwt.SessionId, opsync.DefaultPublisherSettings())
	scene := newScene("Untitled")

	publisher, err := session.NewPublisher(wsSink, scene, "", filterOpt(opts))
	if err != nil {
		Err.Printf("Could not publish the scene (%s).\n", err)
		os.Exit(1)
	}
	editErr := editScene(session, scene)
	// completes the sink, which flushes and closes the link
	publisher.Close()
	if editErr != nil {
		Err.Printf("Edit error (%s).\n", editErr)
	}

	select {
	case <-wsSink.Done():
		Out.Printf("Sent %d operations for session %s.\n", session.Sequence().Last(), session.SessionId())
	case <-ctx.Done():
	case <-time.After(30 * time.Second):
		Err.Printf("Timeout waiting for the sink to close.\n")
	}
}

// receive operations from websocket senders and print them in sequence order
func sink(opts docopt.Opts) {
	addr, err := opts.String("--addr")
	if err != nil || addr == "" {
		addr = DefaultSinkAddr
	}
	jwtSecret, _ := opts.String("--jwt_secret")

	messageCount := -1
	if messageCountStr, err := opts.String("--message_count"); err == nil && messageCountStr != "" {
		messageCount, err = strconv.Atoi(messageCountStr)
		if err != nil {
			Err.Printf("Invalid message_count (%s).\n", err)
			os.Exit(1)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	out := opsync.NewJsonLinesSink(os.Stdout, isTerminal())
	var stateLock sync.Mutex
	receivedCount := 0
	handler := opsync.NewWebSocketOperationHandlerWithDefaults(
		[]byte(jwtSecret),
		func(sessionId opsync.Id, op opsync.SyncOperation) {
			stateLock.Lock()
			defer stateLock.Unlock()
			if 0 <= messageCount && messageCount <= receivedCount {
				return
			}
			out.OnNext(op)
			receivedCount += 1
			if 0 <= messageCount && messageCount <= receivedCount {
				cancel()
			}
		},
	)

	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
	}()

	Err.Printf("Listening on %s.\n", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		Err.Printf("Server error (%s).\n", err)
		os.Exit(1)
	}
}

// mint a session JWT
func token(opts docopt.Opts) {
	jwtSecret, _ := opts.String("--jwt_secret")

	sessionId := opsync.NewId()
	if sessionIdStr, err := opts.String("--session_id"); err == nil && sessionIdStr != "" {
		sessionId, err = opsync.ParseId(sessionIdStr)
		if err != nil {
			Err.Printf("Invalid session_id (%s).\n", err)
			os.Exit(1)
		}
	}

	jwt, err := opsync.NewSessionJwt([]byte(jwtSecret), sessionId)
	if err != nil {
		Err.Printf("Could not sign the JWT (%s).\n", err)
		os.Exit(1)
	}
	Out.Printf("%s\n", jwt)
}
