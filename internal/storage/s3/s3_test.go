package s3

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func TestNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"no such key", &types.NoSuchKey{}, true},
		{"head not found", fmt.Errorf("operation error: %w", &types.NotFound{}), true},
		{"other", errors.New("access denied"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(notFound(tt.err), fs.ErrNotExist); got != tt.want {
				t.Errorf("notFound(%v) matches ErrNotExist = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
