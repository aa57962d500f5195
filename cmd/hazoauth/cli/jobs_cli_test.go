package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTriggerRejectsUnknownJob(t *testing.T) {
	cli, err := NewJobsCLI("127.0.0.1:6379")
	require.NoError(t, err)
	defer func() { _ = cli.Close() }()

	_, err = cli.Trigger(context.Background(), "mail:bogus")
	require.ErrorContains(t, err, "unsupported job")
}

func TestHelpersRequireConfiguration(t *testing.T) {
	var cli *JobsCLI

	_, err := cli.Trigger(context.Background(), "scopes:integrity")
	require.Error(t, err)

	_, err = cli.InspectQueue(context.Background())
	require.Error(t, err)

	_, err = cli.ListScheduled(context.Background(), 5)
	require.Error(t, err)
}
