package constants

import "time"

const (
	// FieldWidth is the number of grid columns
	FieldWidth int = 20
	// FieldHeight is the number of grid rows
	FieldHeight int = 15

	// ReceiptPollInterval is the delay between two receipt lookups
	ReceiptPollInterval time.Duration = 500 * time.Millisecond
	// ReceiptMaxAttempts bounds the receipt lookups for one transaction.
	// Together with ReceiptPollInterval this gives a 5 minute budget.
	ReceiptMaxAttempts int = 600

	// FetchConcurrency bounds the reads in flight during one snapshot fetch
	FetchConcurrency int = 64

	// ResubscribeRate is the sustained number of resubscriptions per second
	ResubscribeRate float64 = 1
	// ResubscribeBurst is the number of resubscriptions allowed back to back
	ResubscribeBurst int = 3

	// SubmitGas is the gas limit attached to every submitted call
	SubmitGas uint64 = 4000000

	// SnapshotSaveInterval is how often the current snapshot is persisted
	SnapshotSaveInterval time.Duration = 10 * time.Second

	// AlertQueueSize bounds the user-visible alerts waiting to be read
	AlertQueueSize int = 100
)
