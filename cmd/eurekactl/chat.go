package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/eureka-labs/eureka/backend/internal/config"
	"github.com/eureka-labs/eureka/backend/internal/model/agent"
	"github.com/eureka-labs/eureka/backend/internal/model/submission"
	"github.com/eureka-labs/eureka/backend/internal/service/credential"
	"github.com/eureka-labs/eureka/backend/internal/service/realtime"
	"github.com/eureka-labs/eureka/backend/internal/service/session"
	"github.com/eureka-labs/eureka/backend/internal/service/webhook"
)

var (
	agentFlag   string
	verboseFlag bool
)

func init() {
	chatCmd.Flags().StringVarP(&agentFlag, "agent", "a", "", "Agent profile id (default: first configured agent)")
	chatCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "Print the event log and control changes")
}

// chatCmd: eurekactl chat
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the agent from the terminal",
	Long: `Chat connects to the realtime agent and sends every stdin line as a text message.

Commands:
  /status   Show the session state
  /retry    Retry the last failed project submission
  /quit     Disconnect and exit`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		profiles, err := agent.LoadFile(cfg.Realtime.ProfilesPath)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log := logrus.NewEntry(logrus.StandardLogger())
		ctrl := session.NewController(session.Options{
			Credentials: credential.NewRemote(serverFlag, nil),
			Streams: realtime.NewFactory(realtime.Options{
				URL:    cfg.Realtime.StreamURL,
				Model:  cfg.Realtime.Model,
				Logger: log,
			}),
			Agents:         agent.NewMemoryStore(profiles),
			Webhook:        webhook.NewClient(cfg.Webhook, log),
			Sink:           newTerminalSink(cmd.OutOrStdout(), verboseFlag),
			ConnectTimeout: cfg.Realtime.ConnectTimeout,
			Logger:         log,
		})
		defer ctrl.Shutdown(context.Background())

		ctrl.Announce()
		if err := ctrl.Connect(ctx, agentFlag); err != nil {
			return err
		}
		return runChat(ctx, ctrl, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

// chatSession is the part of the controller the chat loop drives.
type chatSession interface {
	SendText(ctx context.Context, text string) error
	RetrySubmission(ctx context.Context) (submission.Outcome, error)
	Disconnect(ctx context.Context) error
	Snapshot() session.Snapshot
}

// statePollInterval 检查会话是否已被上游结束的间隔
var statePollInterval = 250 * time.Millisecond

// runChat reads lines until /quit, EOF, ctx cancellation, or the session ending on its own.
func runChat(ctx context.Context, s chatSession, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	ticker := time.NewTicker(statePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if s.Snapshot().State == session.StateActive {
				report(out, s.Disconnect(ctx))
			}
			return err
		case line := <-lines:
			quit := handleLine(ctx, s, strings.TrimSpace(line), out)
			if quit {
				return nil
			}
		case <-ticker.C:
			if snap := s.Snapshot(); ended(snap.State) {
				fmt.Fprintf(out, "sesión terminada (%s): %s\n", snap.State, snap.Status.Message)
				return nil
			}
		}
	}
}

func ended(state session.State) bool {
	switch state {
	case session.StateIdle, session.StateFailed, session.StateDisconnected:
		return true
	}
	return false
}

func handleLine(ctx context.Context, s chatSession, line string, out io.Writer) bool {
	switch line {
	case "":
	case "/quit":
		report(out, s.Disconnect(ctx))
		return true
	case "/status":
		snap := s.Snapshot()
		fmt.Fprintf(out, "estado=%s sesión=%s agente=%s\n", snap.State, snap.SessionID, snap.AgentID)
		fmt.Fprintf(out, "[%s] %s\n", snap.Status.Level, snap.Status.Message)
	case "/retry":
		_, err := s.RetrySubmission(ctx)
		report(out, err)
	default:
		report(out, s.SendText(ctx, line))
	}
	return false
}

// report prints rejections the controller did not already surface as a status.
func report(out io.Writer, err error) {
	switch {
	case err == nil:
	case errors.Is(err, session.ErrInvalidState),
		errors.Is(err, session.ErrNoPendingSubmission),
		errors.Is(err, session.ErrShutdown):
		fmt.Fprintf(out, "error: %v\n", err)
	}
}
