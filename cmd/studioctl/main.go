// Command studioctl drives a running studio from the terminal: it saves the
// credential, lists voices and models, generates speech files and manages the
// local generation history.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/nupi-ai/tts-studio-elevenlabs/internal/client"
	"github.com/nupi-ai/tts-studio-elevenlabs/internal/credential"
	"github.com/nupi-ai/tts-studio-elevenlabs/internal/elevenlabs"
	"github.com/nupi-ai/tts-studio-elevenlabs/internal/localstore"
	"github.com/nupi-ai/tts-studio-elevenlabs/internal/proxy"
)

const (
	defaultServerURL = "http://localhost:3000"

	msgInvalidKey = "API Key không hợp lệ hoặc đã hết hạn. Vui lòng kiểm tra lại cài đặt."
)

// env is the process environment seen by a command.
type env struct {
	stdout io.Writer
	stderr io.Writer
	lookup func(string) (string, bool)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e := env{stdout: os.Stdout, stderr: os.Stderr, lookup: os.LookupEnv}
	os.Exit(run(ctx, os.Args[1:], e))
}

func run(ctx context.Context, args []string, e env) int {
	global := flag.NewFlagSet("studioctl", flag.ContinueOnError)
	global.SetOutput(e.stderr)
	serverURL := global.String("server", envOr(e.lookup, "STUDIO_URL", defaultServerURL), "studio base URL")
	home := global.String("home", envOr(e.lookup, "STUDIOCTL_HOME", defaultHome()), "local state directory")
	global.Usage = func() {
		fmt.Fprintln(e.stderr, "usage: studioctl [-server URL] [-home DIR] <command> [args]")
		fmt.Fprintln(e.stderr, "commands: key, voices, models, say, preview, history, history-delete")
		global.PrintDefaults()
	}
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}

	store, err := localstore.Open(*home)
	if err != nil {
		fmt.Fprintln(e.stderr, err)
		return 1
	}

	cmd, rest := global.Arg(0), global.Args()[1:]
	if cmd == "key" {
		err = keyCommand(store, rest, e)
	} else {
		var c *client.Client
		c, err = newClient(*serverURL, store)
		if err == nil {
			err = dispatch(ctx, cmd, rest, c, store, e)
		}
	}

	var usage usageError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &usage):
		fmt.Fprintln(e.stderr, usage.Error())
		return 2
	default:
		fmt.Fprintln(e.stderr, describe(err))
		return 1
	}
}

func dispatch(ctx context.Context, cmd string, args []string, c *client.Client, store *localstore.Store, e env) error {
	switch cmd {
	case "voices":
		return voicesCommand(ctx, c, e)
	case "models":
		return modelsCommand(ctx, c, e)
	case "say":
		return sayCommand(ctx, c, store, args, e)
	case "preview":
		return previewCommand(ctx, c, store, args, e)
	case "history":
		return historyCommand(store, e)
	case "history-delete":
		return historyDeleteCommand(store, args)
	default:
		return usageError(fmt.Sprintf("unknown command %q", cmd))
	}
}

type usageError string

func (u usageError) Error() string { return string(u) }

func newClient(serverURL string, store *localstore.Store) (*client.Client, error) {
	key, err := store.APIKey()
	if err != nil {
		return nil, err
	}
	return client.New(serverURL, client.WithSession(client.Session{APIKey: key}))
}

func keyCommand(store *localstore.Store, args []string, e env) error {
	if len(args) != 1 {
		return usageError("usage: studioctl key <api-key|->")
	}
	key := strings.TrimSpace(args[0])
	if key == "-" {
		key = ""
	}
	if err := store.SetAPIKey(key); err != nil {
		return err
	}
	switch {
	case key == "":
		fmt.Fprintln(e.stdout, "API key cleared; the studio will serve mock data")
	case !credential.Usable(key):
		fmt.Fprintln(e.stdout, "API key saved, but it does not look valid; the studio will serve mock data")
	default:
		fmt.Fprintln(e.stdout, "API key saved")
	}
	return nil
}

func voicesCommand(ctx context.Context, c *client.Client, e env) error {
	list, err := c.Voices(ctx)
	if err != nil {
		return err
	}
	if list.IsMock {
		fmt.Fprintln(e.stdout, "# mock catalog")
	}
	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VOICE_ID\tNAME\tGENDER\tACCENT\tDESCRIPTION")
	for _, v := range list.Voices {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", v.VoiceID, v.Name, v.Labels["gender"], v.Labels["accent"], v.Labels["description"])
	}
	return tw.Flush()
}

func modelsCommand(ctx context.Context, c *client.Client, e env) error {
	models, err := c.Models(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL_ID\tNAME\tCOST/CHAR")
	for _, m := range models {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", m.ModelID, m.Name, client.Cost("x", m.ModelID))
	}
	return tw.Flush()
}

// sceneList collects repeated -scene flags.
type sceneList []string

func (s *sceneList) String() string { return strings.Join(*s, " | ") }

func (s *sceneList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

type sayOptions struct {
	voice      string
	model      string
	stability  int
	similarity int
	speed      float64
	out        string
}

func (o *sayOptions) register(fs *flag.FlagSet) {
	fs.StringVar(&o.voice, "voice", "", "voice id (default: first voice of the catalog)")
	fs.StringVar(&o.model, "model", proxy.DefaultModelID, "model id")
	fs.IntVar(&o.stability, "stability", 50, "stability, 0-100")
	fs.IntVar(&o.similarity, "similarity", 75, "similarity boost, 0-100")
	fs.Float64Var(&o.speed, "speed", 1.0, "speaking speed")
	fs.StringVar(&o.out, "out", ".", "output directory")
}

func (o *sayOptions) validate() error {
	if o.stability < 0 || o.stability > 100 {
		return usageError("stability must be within 0-100")
	}
	if o.similarity < 0 || o.similarity > 100 {
		return usageError("similarity must be within 0-100")
	}
	if o.speed <= 0 {
		return usageError("speed must be positive")
	}
	return nil
}

func (o *sayOptions) settings() *elevenlabs.VoiceSettings {
	stability := float64(o.stability) / 100
	similarity := float64(o.similarity) / 100
	speed := o.speed
	return &elevenlabs.VoiceSettings{
		Stability:       &stability,
		SimilarityBoost: &similarity,
		Speed:           &speed,
	}
}

func sayCommand(ctx context.Context, c *client.Client, store *localstore.Store, args []string, e env) error {
	fs := flag.NewFlagSet("say", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	var opts sayOptions
	opts.register(fs)
	var scenes sceneList
	fs.Var(&scenes, "scene", "scene text; repeat to generate one file per scene")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if err := opts.validate(); err != nil {
		return err
	}

	var texts []string
	if len(scenes) > 0 {
		for _, s := range scenes {
			if strings.TrimSpace(s) != "" {
				texts = append(texts, s)
			}
		}
		if len(texts) == 0 {
			return usageError("Vui lòng nhập nội dung cho ít nhất một scene")
		}
	} else {
		text := strings.Join(fs.Args(), " ")
		if strings.TrimSpace(text) == "" {
			return usageError("Vui lòng nhập văn bản")
		}
		texts = []string{text}
	}

	g, err := newGenerator(ctx, c, store, opts, e)
	if err != nil {
		return err
	}
	for _, text := range texts {
		if err := g.generate(ctx, text); err != nil {
			return err
		}
	}
	fmt.Fprintf(e.stdout, "credits remaining: %d\n", g.balance.Remaining)
	return nil
}

func previewCommand(ctx context.Context, c *client.Client, store *localstore.Store, args []string, e env) error {
	fs := flag.NewFlagSet("preview", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	var opts sayOptions
	opts.register(fs)
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if err := opts.validate(); err != nil {
		return err
	}

	g, err := newGenerator(ctx, c, store, opts, e)
	if err != nil {
		return err
	}
	return g.generate(ctx, client.PreviewText(g.voiceName))
}

// generator turns texts into saved files and history entries.
type generator struct {
	c         *client.Client
	store     *localstore.Store
	opts      sayOptions
	voiceName string
	balance   *client.Balance
	stdout    io.Writer
}

func newGenerator(ctx context.Context, c *client.Client, store *localstore.Store, opts sayOptions, e env) (*generator, error) {
	list, err := c.Voices(ctx)
	if err != nil {
		return nil, err
	}
	if opts.voice == "" {
		if len(list.Voices) == 0 {
			return nil, fmt.Errorf("studioctl: no voices available")
		}
		opts.voice = list.Voices[0].VoiceID
	}
	name := "Unknown"
	if v, ok := list.Find(opts.voice); ok {
		name = v.Name
	}
	if err := os.MkdirAll(opts.out, 0o755); err != nil {
		return nil, fmt.Errorf("studioctl: create output directory: %w", err)
	}
	return &generator{
		c:         c,
		store:     store,
		opts:      opts,
		voiceName: name,
		balance:   client.NewBalance(),
		stdout:    e.stdout,
	}, nil
}

func (g *generator) generate(ctx context.Context, text string) error {
	cost, err := g.balance.Quote(text, g.opts.model)
	if err != nil {
		return err
	}

	audio, err := g.c.Speak(ctx, proxy.SpeechRequest{
		Text:     text,
		VoiceID:  g.opts.voice,
		ModelID:  g.opts.model,
		Settings: g.opts.settings(),
	})
	if err != nil {
		return err
	}

	// The counter only advances once the audio is safely on disk.
	tmp, err := writeTemp(g.opts.out, audio)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	index, err := g.store.NextIndex()
	if err != nil {
		return err
	}
	path := filepath.Join(g.opts.out, localstore.Filename(index, g.voiceName))
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("studioctl: save audio: %w", err)
	}
	if _, err := g.store.Add(text, g.voiceName, path, index); err != nil {
		return err
	}
	g.balance.Deduct(cost)

	fmt.Fprintf(g.stdout, "%s (%d bytes, %d credits)\n", path, len(audio), cost)
	return nil
}

func writeTemp(dir string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, ".studioctl-*.mp3")
	if err != nil {
		return "", fmt.Errorf("studioctl: write audio: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("studioctl: write audio: %w", err)
	}
	if err := f.Chmod(0o644); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("studioctl: write audio: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("studioctl: write audio: %w", err)
	}
	return f.Name(), nil
}

func historyCommand(store *localstore.Store, e env) error {
	items, err := store.List()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tINDEX\tVOICE\tCREATED\tTEXT\tFILE")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%03d\t%s\t%s\t%s\t%s\n",
			it.ID, it.Index, it.VoiceName, it.Timestamp.Local().Format(time.DateTime), it.Text, it.AudioPath)
	}
	return tw.Flush()
}

func historyDeleteCommand(store *localstore.Store, args []string) error {
	if len(args) != 1 {
		return usageError("usage: studioctl history-delete <id>")
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return usageError(fmt.Sprintf("invalid id %q: %v", args[0], err))
	}
	return store.Delete(id)
}

// describe renders err for the terminal, with the localized message for a
// rejected credential.
func describe(err error) string {
	var apiErr *client.Error
	if errors.As(err, &apiErr) {
		if apiErr.Unauthorized() {
			return msgInvalidKey
		}
		return apiErr.Message
	}
	if errors.Is(err, client.ErrInsufficientCredits) {
		return "Không đủ điểm để tạo!"
	}
	return err.Error()
}

func envOr(lookup func(string) (string, bool), key, fallback string) string {
	if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func defaultHome() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".studioctl"
	}
	return filepath.Join(dir, "tts-studio")
}
