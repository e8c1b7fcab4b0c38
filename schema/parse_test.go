package schema

import (
	"encoding/base64"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/ndnmps/crypto/bls"
)

const exampleJSON = `{
  "rule-id": "interview",
  "pkt-name": "/pkt/_",
  "all-of": ["2x/A/_"],
  "at-least-num": 1,
  "at-least": ["/B/_"]
}`

func TestFromJSON(t *testing.T) {
	s, err := FromJSON([]byte(exampleJSON))
	require.NoError(t, err)

	require.Equal(t, "interview", s.RuleID)
	require.Equal(t, 1, s.MinOptionalSigners)
	require.Len(t, s.Signers, 1)
	require.Equal(t, 2, s.Signers[0].Times)
	require.Len(t, s.OptionalSigners, 1)

	require.True(t, s.PassSchema(names(t, "/A/1", "/A/2", "/B/1")))
	require.False(t, s.PassSchema(names(t, "/A/1", "/A/2")))
}

func TestFromJSON_Invalid(t *testing.T) {
	_, err := FromJSON([]byte("{"))
	require.Error(t, err)

	_, err = FromJSON([]byte(`{"pkt-name": "/p", "all-of": ["0x/A/_"]}`))
	require.Error(t, err)

	_, err = FromJSON([]byte(`{"pkt-name": "/p", "at-least-num": -1}`))
	require.EqualError(t, err, "at-least-num must not be negative")
}

func TestFromINFO(t *testing.T) {
	info := `rule-id "interview"
pkt-name "/pkt/_"
all-of
{
  _ "2x/A/_"
}
at-least-num 1
at-least
{
  _ "/B/_"
}`

	s, err := FromINFO(info)
	require.NoError(t, err)
	require.Equal(t, "interview", s.RuleID)
	require.True(t, s.PassSchema(names(t, "/A/1", "/A/2", "/B/1")))

	_, err = FromINFO("nonsense")
	require.Error(t, err)

	_, err = FromINFO("bogus-key 3")
	require.EqualError(t, err, "unknown key 'bogus-key'")
}

func TestToINFO_Reload(t *testing.T) {
	s, err := FromJSON([]byte(exampleJSON))
	require.NoError(t, err)

	reloaded, err := FromINFO(s.ToINFO())
	require.NoError(t, err)

	// The reloaded schema is equivalent under PassSchema.
	for _, signers := range [][]string{
		{"/A/1", "/A/2", "/B/1"},
		{"/A/1", "/A/2"},
		{"/A/1", "/B/1"},
		{},
	} {
		require.Equal(t, s.PassSchema(names(t, signers...)),
			reloaded.PassSchema(names(t, signers...)))
	}
}

func TestSchemaFiles(t *testing.T) {
	dir := t.TempDir()

	jsonPath := dir + "/schema.json"
	require.NoError(t, writeFile(jsonPath, exampleJSON))

	s, err := FromJSONFile(jsonPath)
	require.NoError(t, err)

	infoPath := dir + "/schema.info"
	require.NoError(t, writeFile(infoPath, s.ToINFO()))

	reloaded, err := FromINFOFile(infoPath)
	require.NoError(t, err)
	require.Equal(t, s.RuleID, reloaded.RuleID)

	_, err = FromJSONFile(dir + "/missing.json")
	require.Error(t, err)

	_, err = FromINFOFile(dir + "/missing.info")
	require.Error(t, err)
}

func TestContainer_LoadTrustedIDs(t *testing.T) {
	signer := bls.NewSigner()
	raw, err := signer.GetPublicKey().MarshalBinary()
	require.NoError(t, err)

	doc := fmt.Sprintf(`trusted-ids:
- name: /A/1
  key: %s
`, base64.StdEncoding.EncodeToString(raw))

	container := NewContainer()
	require.NoError(t, container.LoadTrustedIDs([]byte(doc)))

	pk, ok := container.TrustedID(name(t, "/A/1"))
	require.True(t, ok)
	require.True(t, pk.Equal(signer.GetPublicKey()))
	require.Len(t, container.TrustedIDs(), 1)

	// Re-adding the same id keeps the first entry.
	container.AddTrustedID(name(t, "/A/1"), bls.NewSigner().GetPublicKey())
	require.Len(t, container.TrustedIDs(), 1)

	dir := t.TempDir()
	path := dir + "/ids.yml"
	require.NoError(t, writeFile(path, doc))
	require.NoError(t, NewContainer().LoadTrustedIDsFile(path))

	err = NewContainer().LoadTrustedIDsFile(dir + "/missing.yml")
	require.Error(t, err)

	err = container.LoadTrustedIDs([]byte("trusted-ids: ["))
	require.Error(t, err)

	err = container.LoadTrustedIDs([]byte("trusted-ids:\n- name: /A/2\n  key: bm90YWtleQ==\n"))
	require.Error(t, err)

	err = container.LoadTrustedIDs([]byte("trusted-ids:\n- name: /A/2\n  key: '***'\n"))
	require.Error(t, err)
}

// -----------------------------------------------------------------------------
// Utility functions

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}
