package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesAppendedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messaging",
			Name:      "messages_appended_total",
			Help:      "Total number of messages appended to case conversations.",
		},
		[]string{"sender_type", "sms_mirror"},
	)

	messagesRetractedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messaging",
			Name:      "messages_retracted_total",
			Help:      "Total number of message retraction attempts.",
		},
		[]string{"outcome"}, // deleted, denied, expired, not_found
	)

	smsDispatchCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "messaging",
			Name:      "sms_dispatch_total",
			Help:      "Total number of SMS dispatch attempts by notification kind.",
		},
		[]string{"kind", "status"}, // status: sent, failed
	)

	attachmentsUploadedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "messaging",
			Name:      "attachments_uploaded_total",
			Help:      "Total number of attachment objects stored.",
		},
	)

	attachmentBytesHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "messaging",
			Name:      "attachment_bytes",
			Help:      "Size distribution of uploaded attachments.",
			Buckets:   prometheus.ExponentialBuckets(16*1024, 4, 6), // 16KiB .. 16MiB
		},
	)

	unreadBatchDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "messaging",
			Name:      "unread_batch_duration_seconds",
			Help:      "Duration of batched unread-count lookups.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
