package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jessevdk/go-flags"

	"toolchat/config"
)

// Options are the command line flags. The struct tags are read by go-flags.
// Without a sub-command the server starts.
type Options struct {
	Config  string `short:"c" long:"config" description:"path to config.toml (default ~/.config/toolchat/config.toml)"`
	Listen  string `short:"l" long:"listen" description:"listen address, overrides the config file"`
	Version bool   `short:"v" long:"version" description:"print version and exit"`

	Credentials CredentialsCmd `command:"credentials" description:"Manage stored API keys and tokens"`
	InitConfig  InitConfigCmd  `command:"init-config" description:"Write a default config file"`
}

// cli carries the parsed options plus the streams sub-commands talk to.
type cli struct {
	Options
	in  io.Reader
	out io.Writer
}

func newCLI(in io.Reader, out io.Writer) *cli {
	c := &cli{in: in, out: out}
	c.Credentials.Set.cli = c
	c.Credentials.Delete.cli = c
	c.Credentials.List.cli = c
	c.InitConfig.cli = c
	return c
}

func (c *cli) parser() *flags.Parser {
	p := flags.NewParser(&c.Options, flags.HelpFlag|flags.PassDoubleDash)
	p.SubcommandsOptional = true
	return p
}

type CredentialsCmd struct {
	Set    CredentialSetCmd    `command:"set"    description:"Store a secret read from stdin under a credential name"`
	Delete CredentialDeleteCmd `command:"delete" description:"Remove a stored credential"`
	List   CredentialListCmd   `command:"list"   description:"List stored credential names"`
}

type credentialArgs struct {
	Name string `positional-arg-name:"name" required:"yes"`
}

type CredentialSetCmd struct {
	Args credentialArgs `positional-args:"yes" required:"yes"`
	cli  *cli
}

// Execute reads the secret from stdin so it stays out of shell history.
func (s *CredentialSetCmd) Execute(_ []string) error {
	secret, err := readSecret(s.cli.in)
	if err != nil {
		return err
	}
	cfg, err := config.Load(s.cli.Config)
	if err != nil {
		return err
	}
	if err := cfg.SetSecret(s.Args.Name, secret); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	fmt.Fprintf(s.cli.out, "stored %s (%s)\n", s.Args.Name, cfg.CredentialStore.Method())
	return nil
}

type CredentialDeleteCmd struct {
	Args credentialArgs `positional-args:"yes" required:"yes"`
	cli  *cli
}

func (d *CredentialDeleteCmd) Execute(_ []string) error {
	cfg, err := config.Load(d.cli.Config)
	if err != nil {
		return err
	}
	if err := cfg.DeleteSecret(d.Args.Name); err != nil {
		return err
	}
	fmt.Fprintf(d.cli.out, "deleted %s\n", d.Args.Name)
	return nil
}

type CredentialListCmd struct {
	cli *cli
}

func (l *CredentialListCmd) Execute(_ []string) error {
	cfg, err := config.Load(l.cli.Config)
	if err != nil {
		return err
	}
	for _, name := range cfg.CredentialStore.Names() {
		fmt.Fprintln(l.cli.out, name)
	}
	return nil
}

type InitConfigCmd struct {
	Force bool `long:"force" description:"overwrite an existing config file"`
	cli   *cli
}

func (i *InitConfigCmd) Execute(_ []string) error {
	path := i.cli.Config
	if path == "" {
		path = config.GetConfigFilePath()
	}
	if config.FileExists(path) && !i.Force {
		return fmt.Errorf("config %s already exists (use --force to overwrite)", path)
	}
	if err := config.Save(config.Default(), path); err != nil {
		return err
	}
	fmt.Fprintf(i.cli.out, "wrote %s\n", path)
	return nil
}

func readSecret(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		return "", errors.New("no secret on stdin")
	}
	return secret, nil
}
