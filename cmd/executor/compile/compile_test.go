package compile

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.firedancer.io/executor/cmd/executor/inspect"
)

func TestCompileBatch_Encodings(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	user := solana.NewWallet().PublicKey()

	path := filepath.Join(t.TempDir(), "batch.yaml")
	batch := fmt.Sprintf("payer: %s\ninstructions:\n  - transfer: {from: %s, to: %s, lamports: 10}\n", payer, user, payer)
	require.NoError(t, os.WriteFile(path, []byte(batch), 0o644))

	_, msg, tables, err := CompileBatch(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Empty(t, tables)
	assert.Equal(t, []solana.PublicKey{payer, user}, msg.AccountKeys[:2])

	for _, format := range []string{"record", "message", "compact"} {
		data, err := Encode(format, msg)
		require.NoError(t, err, format)

		decoded, err := inspect.Decode(format, data)
		require.NoError(t, err, format)

		reencoded, err := Encode(format, decoded)
		require.NoError(t, err, format)
		assert.Equal(t, data, reencoded, format)
	}

	_, err = Encode("json", msg)
	assert.Error(t, err)

	var out bytes.Buffer
	inspect.PrintMessage(&out, msg)
	assert.Contains(t, out.String(), "[0] "+payer.String()+" (signer, writable)")
	assert.Contains(t, out.String(), "Instructions (1):")
	assert.Contains(t, out.String(), "  #0 program=[2] accounts=[1 0] data=020000000a00000000000000")
}
