package entity

type AggregationType string

const (
	AggregationDeposit          AggregationType = "deposit"
	AggregationWithdrawal       AggregationType = "withdrawal"
	AggregationTransfer         AggregationType = "transfer"
	AggregationFeeCollected     AggregationType = "fee_collected"
	AggregationRewardsConverted AggregationType = "rewards_converted"
	AggregationMerge            AggregationType = "merge"
)

type PointsCategory string

const (
	PointsCategoryLP     PointsCategory = "lp"
	PointsCategoryMerger PointsCategory = "merger"
)
