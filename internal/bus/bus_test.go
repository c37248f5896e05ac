package bus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTopicNaming(t *testing.T) {
	t.Parallel()

	require.Equal(t, "dd-trainer-input", Topic("trainer", "input"))
	require.Equal(t, "dd-trainer-progress", Topic("trainer", "progress"))
	require.Equal(t, "dd-crawler-pages", Topic("crawler", "pages"))
	require.Equal(t, "dd-crawler-model", Topic("crawler", "model"))
}

func TestConstructorsConfigure(t *testing.T) {
	t.Parallel()

	r := NewReader([]string{"localhost:9092"}, "group", "dd-trainer-input")
	require.NotNil(t, r)
	require.Equal(t, "dd-trainer-input", r.Config().Topic)
	require.Equal(t, "group", r.Config().GroupID)

	w := NewWriter([]string{"localhost:9092"}, "dd-trainer-progress")
	require.Equal(t, "dd-trainer-progress", w.Topic)
}
