package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombineContext_SecondaryCancelPropagates(t *testing.T) {
	primary := context.Background()
	secondary, cancelSecondary := context.WithCancel(context.Background())

	combined, cancel := combineContext(primary, secondary)
	defer cancel()

	cancelSecondary()
	select {
	case <-combined.Done():
	case <-time.After(time.Second):
		t.Fatal("combined context did not observe secondary cancellation")
	}
}

func TestCombineContext_PrimaryCancelPropagates(t *testing.T) {
	primary, cancelPrimary := context.WithCancel(context.Background())

	combined, cancel := combineContext(primary, context.Background())
	defer cancel()

	cancelPrimary()
	select {
	case <-combined.Done():
	case <-time.After(time.Second):
		t.Fatal("combined context did not observe primary cancellation")
	}
}

func TestCombineContext_InheritsValues(t *testing.T) {
	type key struct{}
	primary := context.WithValue(context.Background(), key{}, "val")

	combined, cancel := combineContext(primary, context.Background())
	defer cancel()

	assert.Equal(t, "val", combined.Value(key{}))
}

func TestJSONQuote(t *testing.T) {
	assert.Equal(t, `"h1"`, jsonQuote("h1"))
	assert.Equal(t, `"a\"b"`, jsonQuote(`a"b`))
}

func TestSelectorTextScript_EscapesSelector(t *testing.T) {
	script := selectorTextScript(`a[title="x"]`)
	require.Contains(t, script, `"a[title=\"x\"]"`)
	assert.Contains(t, script, "querySelectorAll")
}
