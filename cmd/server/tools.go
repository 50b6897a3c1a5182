package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/scottring/family-planner-sub006/pkg/extract"
	"github.com/scottring/family-planner-sub006/pkg/family"
	"github.com/scottring/family-planner-sub006/pkg/ocr"
	"github.com/scottring/family-planner-sub006/pkg/segment"
)

func parseCmd() *cobra.Command {
	var members []string
	cmd := &cobra.Command{
		Use:   "parse [text]",
		Short: "Extract entities and items from text without storing anything",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := input(cmd, args)
			if err != nil {
				return err
			}
			roster, err := parseMembers(members)
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			bag := extract.New(roster, time.Now().In(loc)).Extract(text)
			return printJSON(cmd.OutOrStdout(), segment.Parse(text, bag))
		},
	}
	cmd.Flags().StringSliceVarP(&members, "member", "m", nil, "household member as name[:role], repeatable")
	return cmd
}

func ocrFieldsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ocr-fields [file]",
		Short: "Extract form fields from OCR text in a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if len(args) == 1 {
				data, err = os.ReadFile(args[0])
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("failed to read ocr text: %w", err)
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			fields := ocr.NewFieldExtractor(time.Now().In(loc)).Extract(string(data))
			return printJSON(cmd.OutOrStdout(), fields)
		},
	}
}

// input returns the single argument or, without one, stdin.
func input(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("no text given")
	}
	return text, nil
}

func parseMembers(specs []string) (family.Roster, error) {
	var roster family.Roster
	for _, s := range specs {
		name, role, _ := strings.Cut(s, ":")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("invalid member %q", s)
		}
		roster = append(roster, family.Member{Name: name, Role: strings.TrimSpace(role)})
	}
	return roster, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
