package bucket

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyBoundaries(t *testing.T) {
	ranges := []Range{
		{Min: 0, Max: 50, Label: "low"},
		{Min: 50, Max: 100, Label: "high"},
	}

	tests := []struct {
		name string
		v    float64
		want string
	}{
		{"lower bound of first", 0, "low"},
		{"inside first", 25, "low"},
		{"shared edge goes to upper range", 50, "high"},
		{"just below shared edge", 49.999, "low"},
		{"inside last", 75, "high"},
		{"max of last range", 100, "high"},
		{"above last", 100.5, Unknown},
		{"below first", -1, Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.v, ranges))
		})
	}
}

func TestClassifyEmptyRanges(t *testing.T) {
	assert.Equal(t, Unknown, Classify(10, nil))
}

func TestClassifyOnlyClosesLastRange(t *testing.T) {
	// Upper edge of a middle range is not closed when it is a gap.
	ranges := []Range{
		{Min: 0, Max: 10, Label: "a"},
		{Min: 20, Max: 30, Label: "b"},
	}
	assert.Equal(t, Unknown, Classify(10, ranges))
	assert.Equal(t, "b", Classify(30, ranges))
}

func TestClassifyScansInCallerOrder(t *testing.T) {
	ranges := []Range{
		{Min: 0, Max: 100, Label: "wide"},
		{Min: 10, Max: 20, Label: "narrow"},
	}
	assert.Equal(t, "wide", Classify(15, ranges))
}

func TestEncodeDefaultScenario(t *testing.T) {
	state := State{"economy": Number(5), "approval": Number(67)}
	assert.Equal(t, "approval:medium,economy:stable", Encode(state, DefaultConfig()))
}

func TestEncodeSortsKeys(t *testing.T) {
	state := State{
		"zeta":     String("Z"),
		"alpha":    Bool(true),
		"tension":  Number(80),
		"approval": Number(10),
		"mood":     String("Angry"),
	}
	want := "alpha:true,approval:very_low,mood:angry,tension:critical,zeta:z"
	for range 20 {
		assert.Equal(t, want, Encode(state, DefaultConfig()))
	}
}

func TestEncodeSkipsUnconfiguredNumbers(t *testing.T) {
	state := State{"population": Number(42), "flag": Bool(false)}
	assert.Equal(t, "flag:false", Encode(state, DefaultConfig()))
}

func TestEncodeSkipsInvalidValues(t *testing.T) {
	state := State{"broken": Value{}, "approval": Number(90)}
	assert.Equal(t, "approval:very_high", Encode(state, DefaultConfig()))
}

func TestEncodeEmptyState(t *testing.T) {
	assert.Equal(t, "", Encode(State{}, DefaultConfig()))
}

func TestStateFromMap(t *testing.T) {
	s := StateFromMap(map[string]any{
		"approval": 67,
		"economy":  5.0,
		"crisis":   true,
		"leader":   "PM",
		"ignored":  []int{1},
	})
	require.Len(t, s, 4)
	assert.Equal(t, KindNumber, s["approval"].Kind())
	assert.Equal(t, KindBool, s["crisis"].Kind())
	assert.Equal(t, KindString, s["leader"].Kind())
	assert.Equal(t, "approval:medium,crisis:true,economy:stable,leader:pm", Encode(s, DefaultConfig()))
}

func TestParseState(t *testing.T) {
	s := ParseState([]string{"approval=67", "crisis=true", "leader=Smith", "bad", "=x"})
	require.Len(t, s, 3)
	assert.Equal(t, 67.0, s["approval"].Num())
	assert.True(t, s["crisis"].Truth())
	assert.Equal(t, "Smith", s["leader"].Str())
}

func TestBucketerAddRangesAndCopy(t *testing.T) {
	b := New(nil)
	b.AddRanges("morale", []Range{{Min: 0, Max: 1, Label: "broken"}, {Min: 1, Max: 10, Label: "ok"}})

	assert.Equal(t, "morale:ok", b.Bucket(State{"morale": Number(10)}))

	cfg := b.Config()
	cfg["morale"][0].Label = "mutated"
	assert.Equal(t, "morale:broken", b.Bucket(State{"morale": Number(0.5)}))
}

func TestBucketerConcurrentUpdates(t *testing.T) {
	b := New(nil)
	state := State{"approval": Number(67)}

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			b.AddRanges(fmt.Sprintf("k%d", i), []Range{{0, 10, "low"}})
		}()
		go func() {
			defer wg.Done()
			assert.Equal(t, "approval:medium", b.Bucket(state))
		}()
	}
	wg.Wait()
	assert.Len(t, b.Config(), len(DefaultConfig())+8)
}

func TestMerge(t *testing.T) {
	a := Config{"x": {{Min: 0, Max: 1, Label: "a"}}}
	b := Config{"x": {{Min: 0, Max: 1, Label: "b"}}, "y": {{Min: 0, Max: 1, Label: "c"}}}
	m := Merge(a, b)
	assert.Equal(t, "b", m["x"][0].Label)
	assert.Equal(t, "c", m["y"][0].Label)
}

func TestValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	err := Config{"x": {{Min: 5, Max: 5, Label: "flat"}}}.Validate()
	assert.ErrorContains(t, err, "min 5 must be below max 5")

	err = Config{"x": {{Min: 0, Max: 5}}}.Validate()
	assert.ErrorContains(t, err, "empty label")
}
