package arweave_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/weft/internal/testutils"
	"github.com/aretw0/weft/pkg/adapters/arweave"
	"github.com/aretw0/weft/pkg/adapters/backend"
)

func TestUpload_Execute(t *testing.T) {
	fb := testutils.NewFakeBackend(t)
	c, err := backend.New(fb.URL())
	require.NoError(t, err)
	up := arweave.New(c)

	file := testutils.File("42", "report.pdf")
	out, err := up.Execute(context.Background(), map[string]any{"tags": "", "permanent": "true"}, file)
	require.NoError(t, err)

	res := out.(map[string]any)
	assert.Equal(t, "tx-42", res["transactionId"])
	assert.Equal(t, file, res["originalFile"])
	assert.Equal(t, []string{
		"GET /api/telegram/ardrive/files/42/cost",
		"POST /api/telegram/ardrive/files/42/upload",
	}, fb.Calls())
}

func TestUpload_RequiresFile(t *testing.T) {
	up := arweave.New(nil)
	_, err := up.Execute(context.Background(), nil, "not a file")
	assert.ErrorIs(t, err, arweave.ErrNoFile)
	_, err = up.Execute(context.Background(), nil, map[string]any{"fileName": "x"})
	assert.ErrorIs(t, err, arweave.ErrNoFile)
}

func TestUpload_CostFailureSkipsUpload(t *testing.T) {
	fb := testutils.NewFakeBackend(t)
	fb.FailOn("/telegram/ardrive/files/7/cost", "insufficient balance")
	c, err := backend.New(fb.URL())
	require.NoError(t, err)

	_, err = arweave.New(c).Execute(context.Background(), nil, testutils.File("7", "a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient balance")
	assert.Equal(t, 0, fb.CallsTo("/telegram/ardrive/files/7/upload"))
}

func TestUpload_Validate(t *testing.T) {
	up := arweave.New(nil)
	assert.NoError(t, up.Validate(map[string]any{"tags": "a,b", "permanent": "false"}))
	assert.Error(t, up.Validate(map[string]any{"permanent": "sometimes"}))
}
