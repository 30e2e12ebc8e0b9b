package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/eureka-labs/eureka/backend/internal/service/credential"
)

// tokenCmd: eurekactl token
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Request an ephemeral credential and print it redacted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		issued, err := credential.NewRemote(serverFlag, nil).Issue(ctx)
		if err != nil {
			return err
		}

		out, err := redactPayload(issued.Raw)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

// redactPayload masks every "value" token in the payload, top level or nested.
func redactPayload(raw json.RawMessage) ([]byte, error) {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode credential payload: %w", err)
	}
	return json.MarshalIndent(redactValues(payload), "", "  ")
}

func redactValues(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if s, ok := child.(string); ok && k == "value" {
				t[k] = credential.Redact(s)
				continue
			}
			t[k] = redactValues(child)
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = redactValues(child)
		}
		return t
	default:
		return v
	}
}
