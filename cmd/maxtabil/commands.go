package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/leadtunic/maxtabil-app-sub001/internal/app"
	"github.com/leadtunic/maxtabil-app-sub001/internal/engine/simples"
	"github.com/leadtunic/maxtabil-app-sub001/internal/ruleset"
	"github.com/leadtunic/maxtabil-app-sub001/internal/ruleset/defaults"
	"github.com/leadtunic/maxtabil-app-sub001/internal/ruleset/schema"
	"github.com/leadtunic/maxtabil-app-sub001/pkg/constants"
	"github.com/leadtunic/maxtabil-app-sub001/pkg/format"
	"github.com/leadtunic/maxtabil-app-sub001/pkg/output"
)

const usage = `usage: maxtabil [flags] <command> [arguments]

commands:
  simulate <KIND> <input.yaml>    run a simulation (KIND: FERIAS, RESCISAO, HONORARIOS, SIMPLES_DAS, FATOR_R)
  compare <input.yaml>            compare the Simples annexes selected by Fator R
  validate <KEY> <payload.yaml>   validate a rule set payload
  publish <KEY> <payload.yaml>    validate and store a rule set payload as the active version
  history <KEY>                   list stored versions
  defaults <KEY>                  print the default payload as YAML

Use "-" to read a file from standard input.
`

// errInvalidPayload signals that validate found violations; main exits non-zero.
var errInvalidPayload = errors.New("payload is invalid")

// exitCode maps a command error to the process status: 2 for a rejected
// payload, 1 for any other failure.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var verr *schema.ValidationError
	if errors.Is(err, errInvalidPayload) || errors.As(err, &verr) {
		return 2
	}
	return 1
}

// command carries what every subcommand needs.
type command struct {
	app          *app.App
	tenant       string
	author       string
	outputFormat string
	stdin        io.Reader
	stdout       io.Writer
}

func (c *command) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command\n%s", usage)
	}

	switch name, rest := args[0], args[1:]; name {
	case "simulate":
		if len(rest) != 2 {
			return fmt.Errorf("simulate expects <KIND> <input.yaml>")
		}
		return c.simulate(ctx, rest[0], rest[1])
	case "compare":
		if len(rest) != 1 {
			return fmt.Errorf("compare expects <input.yaml>")
		}
		return c.compare(ctx, rest[0])
	case "validate":
		if len(rest) != 2 {
			return fmt.Errorf("validate expects <KEY> <payload.yaml>")
		}
		return c.validate(rest[0], rest[1])
	case "publish":
		if len(rest) != 2 {
			return fmt.Errorf("publish expects <KEY> <payload.yaml>")
		}
		return c.publish(ctx, rest[0], rest[1])
	case "history":
		if len(rest) != 1 {
			return fmt.Errorf("history expects <KEY>")
		}
		return c.history(ctx, rest[0])
	case "defaults":
		if len(rest) != 1 {
			return fmt.Errorf("defaults expects <KEY>")
		}
		return c.defaults(rest[0])
	case "help", "-h", "--help":
		fmt.Fprint(c.stdout, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", name, usage)
	}
}

func (c *command) simulate(ctx context.Context, rawKind, path string) error {
	kind, err := ruleset.ParseKey(rawKind)
	if err != nil {
		return err
	}
	input, err := c.readYAML(path)
	if err != nil {
		return err
	}

	sim, err := c.app.Simulator.Run(ctx, kind, c.tenant, input)
	if err != nil {
		return err
	}
	return output.Write(c.stdout, c.outputFormat, output.Report{
		Title:      string(kind),
		Result:     sim.Result,
		Unit:       sim.Unit,
		IsFallback: sim.IsFallback,
		Version:    sim.Version,
		Extra:      sim.Extra,
	})
}

func (c *command) compare(ctx context.Context, path string) error {
	input, err := c.readYAML(path)
	if err != nil {
		return err
	}

	cmp, err := c.app.Simulator.CompareFatorR(ctx, c.tenant, input)
	if err != nil {
		return err
	}

	if c.outputFormat == constants.OutputFormatJSON {
		enc := json.NewEncoder(c.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cmp)
	}

	fmt.Fprintf(c.stdout, "Fator R: %s (limite %s), anexo %s\n",
		format.Percent(cmp.Decision.Ratio, 2), format.Percent(cmp.Decision.Threshold, 2), cmp.Decision.Annex)
	for _, candidate := range []struct {
		title string
		out   simples.Output
	}{
		{fmt.Sprintf("Anexo %s (selecionado)", cmp.Selected.Annex), cmp.Selected},
		{fmt.Sprintf("Anexo %s", cmp.Other.Annex), cmp.Other},
	} {
		fmt.Fprintln(c.stdout)
		err := output.Write(c.stdout, c.outputFormat, output.Report{
			Title:      candidate.title,
			Result:     candidate.out.Result,
			IsFallback: cmp.SimplesFallback,
			Extra: map[string]interface{}{
				"faixa":         candidate.out.Faixa,
				"effectiveRate": candidate.out.EffectiveRate,
			},
		})
		if err != nil {
			return err
		}
	}
	fmt.Fprintf(c.stdout, "\nEconomia mensal: %s\n", format.Currency(cmp.Saving))
	return nil
}

func (c *command) validate(rawKey, path string) error {
	key, err := ruleset.ParseKey(rawKey)
	if err != nil {
		return err
	}
	payload, err := c.readYAML(path)
	if err != nil {
		return err
	}

	result := c.app.Admin.Validate(key, payload)
	if result.OK {
		fmt.Fprintf(c.stdout, "%s payload is valid\n", key)
		return nil
	}
	for _, v := range result.Violations {
		fmt.Fprintf(c.stdout, "%s\n", v)
	}
	return errInvalidPayload
}

func (c *command) publish(ctx context.Context, rawKey, path string) error {
	key, err := ruleset.ParseKey(rawKey)
	if err != nil {
		return err
	}
	payload, err := c.readYAML(path)
	if err != nil {
		return err
	}

	rs, err := c.app.Admin.Publish(ctx, c.tenant, key, payload, c.author, true)
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		for _, v := range verr.Violations {
			fmt.Fprintf(c.stdout, "%s\n", v)
		}
		return err
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "published %s v%d for tenant %s\n", rs.Key, rs.Version, rs.TenantID)
	return nil
}

func (c *command) history(ctx context.Context, rawKey string) error {
	key, err := ruleset.ParseKey(rawKey)
	if err != nil {
		return err
	}
	versions, err := c.app.Admin.History(ctx, c.tenant, key)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		fmt.Fprintf(c.stdout, "no stored versions of %s for tenant %s\n", key, c.tenant)
		return nil
	}
	for _, rs := range versions {
		marker := " "
		if rs.IsActive {
			marker = "*"
		}
		fmt.Fprintf(c.stdout, "%s v%d %s %s\n", marker, rs.Version, rs.CreatedAt.Format("2006-01-02 15:04"), rs.CreatedBy)
	}
	return nil
}

func (c *command) defaults(rawKey string) error {
	key, err := ruleset.ParseKey(rawKey)
	if err != nil {
		return err
	}
	payload, err := defaults.Default(key)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(c.stdout)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]interface{}(payload)); err != nil {
		return fmt.Errorf("failed to encode defaults: %w", err)
	}
	return enc.Close()
}

// readYAML loads a YAML (or JSON) document into a map. Numbers are
// normalized to float64, as they would be in a JSON request body.
func (c *command) readYAML(path string) (map[string]interface{}, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(c.stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal(bytes.TrimSpace(data), &doc); err != nil {
		return nil, fmt.Errorf("error reading %s, %v", path, err)
	}
	if doc == nil {
		return map[string]interface{}{}, nil
	}

	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize %s: %w", path, err)
	}
	normalized := map[string]interface{}{}
	if err := json.Unmarshal(encoded, &normalized); err != nil {
		return nil, fmt.Errorf("failed to normalize %s: %w", path, err)
	}
	return normalized, nil
}
