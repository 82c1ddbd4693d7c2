package indexer

import (
	"github.com/omni/points-indexer/config"
	"github.com/omni/points-indexer/contract/pointsabi"
	"github.com/omni/points-indexer/entity"
	"github.com/omni/points-indexer/scanner"
)

const (
	JobLP                = "lp"
	JobFees              = "fees"
	JobRewardsConversion = "rewards_conversion"
	JobMerge             = "merge"
)

// LPAggregations are scanned as one stream, since withdrawals and transfers
// consume lots opened by earlier deposits.
var LPAggregations = []entity.AggregationType{
	entity.AggregationDeposit,
	entity.AggregationWithdrawal,
	entity.AggregationTransfer,
}

type jobDef struct {
	name   string
	kind   config.ContractKind
	events map[entity.AggregationType]string
}

var jobDefs = []jobDef{
	{
		name: JobLP,
		kind: config.ContractKindVault,
		events: map[entity.AggregationType]string{
			entity.AggregationDeposit:    pointsabi.Deposit,
			entity.AggregationWithdrawal: pointsabi.Withdraw,
			entity.AggregationTransfer:   pointsabi.Transfer,
		},
	},
	{
		name:   JobFees,
		kind:   config.ContractKindVault,
		events: map[entity.AggregationType]string{entity.AggregationFeeCollected: pointsabi.FeeCollected},
	},
	{
		name:   JobRewardsConversion,
		kind:   config.ContractKindVault,
		events: map[entity.AggregationType]string{entity.AggregationRewardsConverted: pointsabi.RewardsConverted},
	},
	{
		name:   JobMerge,
		kind:   config.ContractKindMerger,
		events: map[entity.AggregationType]string{entity.AggregationMerge: pointsabi.Merged},
	},
}

var aggregationOrder = []entity.AggregationType{
	entity.AggregationDeposit,
	entity.AggregationWithdrawal,
	entity.AggregationTransfer,
	entity.AggregationFeeCollected,
	entity.AggregationRewardsConverted,
	entity.AggregationMerge,
}

// BuildJobs groups the configured contracts into scan jobs. Jobs without
// any matching contract are omitted.
func BuildJobs(cfg *config.Config) []*scanner.Job {
	jobs := make([]*scanner.Job, 0, len(jobDefs))
	for _, def := range jobDefs {
		contracts := cfg.ContractsOfKind(def.kind)
		if len(contracts) == 0 {
			continue
		}
		job := &scanner.Job{Name: def.name}
		for _, aggType := range aggregationOrder {
			event, ok := def.events[aggType]
			if !ok {
				continue
			}
			job.Topics = append(job.Topics, pointsabi.Topics(event)...)
			for _, c := range contracts {
				job.Targets = append(job.Targets, scanner.Target{
					Address:         c.Address,
					AggregationType: aggType,
					StartBlock:      c.StartBlock,
				})
			}
		}
		jobs = append(jobs, job)
	}
	return jobs
}
