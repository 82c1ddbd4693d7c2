package scanner_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/omni/points-indexer/scanner"
)

func TestSplitBlockRange(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		Name           string
		Input          [3]uint
		ExpectedOutput []*scanner.BlocksRange
	}{
		{
			Name:  "Split range in two",
			Input: [3]uint{100, 199, 50},
			ExpectedOutput: []*scanner.BlocksRange{
				{100, 149},
				{150, 199},
			},
		},
		{
			Name:  "Split range with a short tail",
			Input: [3]uint{100, 200, 50},
			ExpectedOutput: []*scanner.BlocksRange{
				{100, 149},
				{150, 199},
				{200, 200},
			},
		},
		{
			Name:  "Keep range as is",
			Input: [3]uint{1, 1000, 1000},
			ExpectedOutput: []*scanner.BlocksRange{
				{1, 1000},
			},
		},
		{
			Name:  "Keep range of one block",
			Input: [3]uint{100, 100, 10},
			ExpectedOutput: []*scanner.BlocksRange{
				{100, 100},
			},
		},
		{
			Name:  "Zero window size means single blocks",
			Input: [3]uint{5, 7, 0},
			ExpectedOutput: []*scanner.BlocksRange{
				{5, 5},
				{6, 6},
				{7, 7},
			},
		},
		{
			Name:           "Invalid range",
			Input:          [3]uint{200, 100, 50},
			ExpectedOutput: []*scanner.BlocksRange{},
		},
	} {
		test := test
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()
			res := scanner.SplitBlockRange(test.Input[0], test.Input[1], test.Input[2])
			require.Equal(t, test.ExpectedOutput, res)
		})
	}
}

func TestJob_Addresses(t *testing.T) {
	t.Parallel()

	job := &scanner.Job{Targets: []scanner.Target{
		{Address: vaultA, AggregationType: "deposit"},
		{Address: vaultA, AggregationType: "withdrawal"},
		{Address: vaultB, AggregationType: "deposit"},
	}}
	require.Equal(t, []common.Address{vaultA, vaultB}, job.Addresses())
}
