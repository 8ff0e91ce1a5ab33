// Package watch is the line-oriented terminal front end of marksync-watch.
// It renders a syncer's list and turns typed commands into hook calls.
package watch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-shellwords"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/syncer"
	"github.com/MrSnakeDoc/marksync/internal/undo"
)

const usage = `commands:
  ls                  show the list
  add <title> <url>   add a bookmark (quote titles with spaces)
  rm <n|id>           delete by list position or ID
  undo                restore the last deleted bookmark
  reconnect           reload the list and reopen the feed
  logout              revoke the token and quit
  quit                exit
`

// ErrQuit is returned by Exec when the session should end.
var ErrQuit = errors.New("quit")

// Options configures a Console.
type Options struct {
	// Live re-renders the list whenever the hook's state changes.
	Live bool
	// Logout revokes the session credential. Nil disables the command.
	Logout func(ctx context.Context) error
}

// Console drives one syncer from text commands.
type Console struct {
	hook *syncer.Syncer
	undo *undo.Manager
	out  io.Writer
	opts Options
}

// New creates a console writing to out.
func New(hook *syncer.Syncer, um *undo.Manager, out io.Writer, opts Options) *Console {
	return &Console{hook: hook, undo: um, out: out, opts: opts}
}

// Run reads commands from in until EOF, quit, or ctx ends. Output is only
// written from the calling goroutine.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	c.Render()
	c.prompt()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			if err := c.Exec(ctx, line); err != nil {
				if errors.Is(err, ErrQuit) {
					return nil
				}
				fmt.Fprintf(c.out, "error: %v\n", err)
			}
			c.prompt()
		case <-c.hook.Updates():
			if c.opts.Live {
				c.Render()
				c.prompt()
			}
		case err := <-c.hook.Failures():
			fmt.Fprintf(c.out, "! %v\n", err)
			c.prompt()
		}
	}
}

// Exec runs one command line.
func (c *Console) Exec(ctx context.Context, line string) error {
	args, err := shellwords.Parse(strings.TrimSpace(line))
	if err != nil {
		return fmt.Errorf("failed to parse command: %w", err)
	}
	if len(args) == 0 {
		return nil
	}

	switch cmd, rest := strings.ToLower(args[0]), args[1:]; cmd {
	case "ls", "list":
		c.Render()
	case "add":
		if len(rest) != 2 {
			return errors.New("usage: add <title> <url>")
		}
		if _, err := c.hook.Add(ctx, rest[0], rest[1]); err != nil {
			return err
		}
		c.notice(undo.AddedNotice)
	case "rm", "del", "delete":
		if len(rest) != 1 {
			return errors.New("usage: rm <n|id>")
		}
		b, err := c.lookup(rest[0])
		if err != nil {
			return err
		}
		if err := c.hook.Remove(ctx, b.ID); err != nil {
			return err
		}
		c.notice(c.undo.Offer(b))
	case "undo":
		if _, err := c.undo.Undo(ctx, c.hook); err != nil {
			return err
		}
		c.notice(undo.AddedNotice)
	case "reconnect":
		// Failures are reported through the hook's failure stream
		_ = c.hook.Reconnect(ctx)
	case "logout":
		if c.opts.Logout == nil {
			return errors.New("logout is not available")
		}
		if err := c.opts.Logout(ctx); err != nil {
			return fmt.Errorf("failed to log out: %w", err)
		}
		fmt.Fprintln(c.out, "signed out")
		return ErrQuit
	case "help", "?":
		fmt.Fprint(c.out, usage)
	case "quit", "exit", "q":
		return ErrQuit
	default:
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
	return nil
}

// Render prints the current list.
func (c *Console) Render() {
	st := c.hook.Snapshot()

	switch {
	case st.OwnerID == "":
		fmt.Fprintln(c.out, "signed out")
		return
	case !st.Ready:
		fmt.Fprintf(c.out, "loading bookmarks for %s...\n", st.OwnerID)
		return
	}

	feedState := "live"
	if !st.Connected {
		feedState = "offline"
	}
	fmt.Fprintf(c.out, "bookmarks for %s (%d) [%s]\n", st.OwnerID, len(st.Items), feedState)
	if len(st.Items) == 0 {
		fmt.Fprintln(c.out, "  no bookmarks yet")
		return
	}
	for i, b := range st.Items {
		fmt.Fprintf(c.out, "%3d. %s  %s  (%s)  %s\n",
			i+1, b.Title, b.URL, humanize.Time(b.CreatedAt), b.ID)
	}
}

func (c *Console) lookup(ref string) (domain.Bookmark, error) {
	items := c.hook.Items()
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(items) {
			return domain.Bookmark{}, fmt.Errorf("no bookmark at position %d", n)
		}
		return items[n-1], nil
	}
	if i := domain.IndexOf(items, ref); i >= 0 {
		return items[i], nil
	}
	return domain.Bookmark{}, fmt.Errorf("no bookmark with id %q", ref)
}

func (c *Console) notice(n undo.Notice) {
	if n.Undoable {
		fmt.Fprintf(c.out, "%s (type undo within %s)\n", n.Message, n.Lifetime)
		return
	}
	fmt.Fprintln(c.out, n.Message)
}

func (c *Console) prompt() {
	fmt.Fprint(c.out, "> ")
}
