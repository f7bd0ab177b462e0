package yolo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func det(class string, score float32, x1 float32) Detection {
	return Detection{Box: [4]float32{x1, 0, x1 + 10, 10}, Score: score, Class: class}
}

// TestBestPerClass verifies that only the highest scoring detection of every class survives.
func TestBestPerClass(t *testing.T) {
	tests := []struct {
		name     string
		input    []Detection
		expected []Detection
	}{
		{
			name:     "nil input yields empty result",
			input:    nil,
			expected: []Detection{},
		},
		{
			name:     "single detection is kept",
			input:    []Detection{det("person", 0.5, 0)},
			expected: []Detection{det("person", 0.5, 0)},
		},
		{
			name: "higher score replaces earlier detection",
			input: []Detection{
				det("dog", 0.4, 0),
				det("dog", 0.9, 20),
				det("dog", 0.6, 40),
			},
			expected: []Detection{det("dog", 0.9, 20)},
		},
		{
			name: "equal score keeps the first detection",
			input: []Detection{
				det("cat", 0.7, 0),
				det("cat", 0.7, 50),
			},
			expected: []Detection{det("cat", 0.7, 0)},
		},
		{
			name: "classes keep first-seen order",
			input: []Detection{
				det("car", 0.3, 0),
				det("person", 0.8, 10),
				det("car", 0.95, 20),
				det("bus", 0.5, 30),
				det("person", 0.2, 40),
			},
			expected: []Detection{
				det("car", 0.95, 20),
				det("person", 0.8, 10),
				det("bus", 0.5, 30),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BestPerClass(tt.input))
		})
	}
}

func TestBestPerClassDoesNotMutateInput(t *testing.T) {
	input := []Detection{det("dog", 0.4, 0), det("dog", 0.9, 20)}
	snapshot := append([]Detection(nil), input...)

	BestPerClass(input)

	assert.Equal(t, snapshot, input)
}

func TestReduce(t *testing.T) {
	input := []Detection{det("dog", 0.4, 0), det("dog", 0.9, 20)}

	assert.Len(t, Reduce(input, DefaultDetectionOptions()), 1)
	assert.Len(t, Reduce(input, nil), 1)
	assert.Len(t, Reduce(input, DefaultDetectionOptions().WithBestPerClass(false)), 2)
}
