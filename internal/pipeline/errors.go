package pipeline

import "errors"

var (
	ErrInvalidKafkaConfig     = errors.New("invalid Kafka configuration provided")
	ErrKafkaFetchFailed       = errors.New("failed to fetch message from Kafka")
	ErrKafkaCommitFailed      = errors.New("failed to commit Kafka offsets")
	ErrConsumerCreationFailed = errors.New("failed to create consumer")
	ErrConsumerRunFailed      = errors.New("consumer component failed")
	ErrFetchSeriesFailed      = errors.New("failed to fetch input series")
	ErrSegmentFailed          = errors.New("cycle segmentation failed")
	ErrAggregateFailed        = errors.New("cycle aggregation failed")
)
