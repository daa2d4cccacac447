package biz

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	documentsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "legalpack",
		Subsystem: "pipeline",
		Name:      "documents_processed_total",
		Help:      "Documents run through text extraction, by outcome",
	}, []string{"status"})

	documentTokens = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "legalpack",
		Subsystem: "pipeline",
		Name:      "document_tokens",
		Help:      "Token count per processed document",
		Buckets:   []float64{100, 500, 1000, 2500, 5000, 10000, 25000, 50000},
	})

	ocrCalls = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "legalpack",
		Subsystem: "pipeline",
		Name:      "ocr_calls_total",
		Help:      "OCR fallback attempts for low-text PDF pages",
	})

	batchTokens = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "legalpack",
		Subsystem: "analysis",
		Name:      "batch_tokens",
		Help:      "Token count per packed batch",
		Buckets:   []float64{500, 1000, 2500, 5000, 8000, 12000, 16000},
	})

	batchesPerAnalysis = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "legalpack",
		Subsystem: "analysis",
		Name:      "batches_per_request",
		Help:      "Number of token batches per analysis request",
		Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
	})

	llmCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "legalpack",
		Subsystem: "analysis",
		Name:      "llm_calls_total",
		Help:      "LLM completion calls, by kind and outcome",
	}, []string{"kind", "status"})

	llmCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "legalpack",
		Subsystem: "analysis",
		Name:      "llm_call_duration_seconds",
		Help:      "LLM completion call latency",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"kind"})

	sessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "legalpack",
		Subsystem: "sessions",
		Name:      "created_total",
		Help:      "Analysis sessions created",
	})

	followUpQuestions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "legalpack",
		Subsystem: "sessions",
		Name:      "follow_up_questions_total",
		Help:      "Follow-up questions answered",
	})
)
