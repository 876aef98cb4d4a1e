package errtype

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapAndClassify(t *testing.T) {
	cases := []struct {
		name string
		kind Kind
	}{
		{"transport", KindTransport},
		{"absent", KindAbsent},
		{"decode", KindDecode},
		{"persist create", KindPersistCreate},
		{"numeric", KindNumeric},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			wrapped := Wrap(c.kind, fmt.Errorf("boom"))
			assert.Equal(t, c.kind, Classify(wrapped))
			assert.True(t, errors.Is(wrapped, sentinelByKind[c.kind]))
		})
	}
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(KindTransport, nil))
}

func TestClassifyUnwrappedError(t *testing.T) {
	assert.Equal(t, Kind(""), Classify(errors.New("plain")))
}

func TestRetriable(t *testing.T) {
	assert.True(t, Retriable(Wrap(KindTransport, errors.New("x"))))
	assert.True(t, Retriable(Wrap(KindAbsent, errors.New("x"))))
	assert.False(t, Retriable(Wrap(KindDecode, errors.New("x"))))
	assert.False(t, Retriable(Wrap(KindParam, errors.New("x"))))
	assert.False(t, Retriable(errors.New("never wrapped")))
}

func TestUnwrapPreservesCause(t *testing.T) {
	cause := errors.New("underlying")
	wrapped := Wrap(KindPersistQuery, cause)
	assert.Same(t, cause, errors.Unwrap(wrapped))
}
