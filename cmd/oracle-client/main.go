package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/ruteri/challenge-oracle-client/attestation"
	"github.com/ruteri/challenge-oracle-client/cmd/clientcommon"
	"github.com/ruteri/challenge-oracle-client/cmd/flags"
	"github.com/ruteri/challenge-oracle-client/fingerprint"
	"github.com/ruteri/challenge-oracle-client/interfaces"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "oracle-client",
		Usage: "Drive identities through the attestation oracle challenge flow",
		Flags: append(append([]cli.Flag{flags.LogServiceFlagFn("oracle-client")}, flags.LogFlags...), flags.OracleFlags...),
		Commands: []*cli.Command{
			runCommand,
			submitBatchCommand,
			pollCommand,
			fingerprintCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run the complete challenge flow for each challenge set",
	ArgsUsage: "CHALLENGE_SET [CHALLENGE_SET...]",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:  "did",
			Usage: "use this identifier instead of minting one (single challenge set only)",
		},
	}, flags.FlowFlags...),
	Action: func(cCtx *cli.Context) error {
		codes := cCtx.Args().Slice()
		if len(codes) == 0 {
			return errors.New("at least one challenge set is required")
		}
		did := interfaces.DID(cCtx.String("did"))
		if did != "" && len(codes) > 1 {
			return errors.New("--did can only be used with a single challenge set")
		}

		logger := flags.SetupLogger(cCtx)
		c, err := clientcommon.Build(cCtx, logger)
		if err != nil {
			return err
		}
		defer c.Close()

		if did != "" {
			return printJSON(c.Orchestrator.RunChallengeFlowWithDID(cCtx.Context, codes[0], did))
		}

		results := c.Orchestrator.RunAll(cCtx.Context, codes)
		if err := printJSON(results); err != nil {
			return err
		}

		failed := 0
		for _, r := range results {
			if r.Error != "" {
				failed++
			}
		}
		if failed > 0 {
			return cli.Exit(fmt.Sprintf("%d of %d challenge flows failed", failed, len(results)), 1)
		}
		return nil
	},
}

var submitBatchCommand = &cli.Command{
	Name:  "submit-batch",
	Usage: "Submit a JSON array of {challengeId, evidence} responses as one batch",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:     "instance-id",
			Required: true,
			Usage:    "challenge instance receiving the evidence",
		},
		&cli.StringFlag{
			Name:  "file",
			Value: "-",
			Usage: "file holding the responses, - for stdin",
		},
	}, flags.FlowFlags...),
	Action: func(cCtx *cli.Context) error {
		items, err := readItems(cCtx.String("file"))
		if err != nil {
			return err
		}

		logger := flags.SetupLogger(cCtx)
		c, err := clientcommon.Build(cCtx, logger)
		if err != nil {
			return err
		}
		defer c.Close()

		result, err := c.Orchestrator.SubmitEvidenceBatch(cCtx.Context, cCtx.String("instance-id"), items)
		if perr := printJSON(result); perr != nil {
			return perr
		}
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		return nil
	},
}

var pollCommand = &cli.Command{
	Name:  "poll",
	Usage: "Poll for attestations issued to a DID",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "did",
			Required: true,
		},
		flags.PollAttemptsFlag,
		flags.PollIntervalFlag,
	},
	Action: func(cCtx *cli.Context) error {
		logger := flags.SetupLogger(cCtx)
		oracle, err := clientcommon.NewOracleClient(cCtx, logger)
		if err != nil {
			return err
		}

		poller := attestation.NewPoller(oracle, nil, logger)
		result, err := poller.Poll(cCtx.Context, interfaces.DID(cCtx.String("did")),
			cCtx.Int(flags.PollAttemptsFlag.Name), cCtx.Duration(flags.PollIntervalFlag.Name))
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var fingerprintCommand = &cli.Command{
	Name:      "fingerprint",
	Usage:     "Print the fingerprint of each argument, or of each stdin line",
	ArgsUsage: "[INPUT...]",
	Flags: []cli.Flag{
		flags.FingerprintSchemeFlag,
	},
	Action: func(cCtx *cli.Context) error {
		scheme, err := fingerprint.ParseScheme(cCtx.String(flags.FingerprintSchemeFlag.Name))
		if err != nil {
			return err
		}

		inputs := cCtx.Args().Slice()
		if len(inputs) == 0 {
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				inputs = append(inputs, scanner.Text())
			}
			if err := scanner.Err(); err != nil {
				return err
			}
		}

		for _, in := range inputs {
			fmt.Println(scheme.Encode(in))
		}
		return nil
	},
}

func readItems(path string) ([]interfaces.EvidenceItem, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var items []interfaces.EvidenceItem
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("could not parse responses: %w", err)
	}
	return items, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

