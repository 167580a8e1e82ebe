package es

import (
	"encoding/json"
	"log/slog"
)

type (
	valueOption[T any] struct{ v T }

	repoOpts struct {
		log         *slog.Logger
		metrics     ESMetrics
		idGenerator IDGenerator
	}

	repoSaveOptions struct {
		metadata json.RawMessage
	}
)

type (
	RepositoryOption interface{ applyToRepository(*repoOpts) }
	SaveOption       interface{ applyToSaveOptions(*repoSaveOptions) }

	LogOption             valueOption[*slog.Logger]
	MetricsOption         valueOption[ESMetrics]
	RepoIDGeneratorOption valueOption[IDGenerator]
	MetadataOption        valueOption[json.RawMessage]
)

func WithLog(l *slog.Logger) LogOption              { return LogOption{v: l} }
func WithMetrics(m ESMetrics) MetricsOption         { return MetricsOption{v: m} }
func WithMetadata(md json.RawMessage) MetadataOption { return MetadataOption{v: md} }

// WithIDGenerator sets a custom generator for event ids.
func WithIDGenerator(gen IDGenerator) RepoIDGeneratorOption {
	return RepoIDGeneratorOption{v: gen}
}

// === repo ==

func (o LogOption) applyToRepository(options *repoOpts)             { options.log = o.v }
func (o MetricsOption) applyToRepository(options *repoOpts)         { options.metrics = o.v }
func (o RepoIDGeneratorOption) applyToRepository(options *repoOpts) { options.idGenerator = o.v }

func newRepoOpts(opts ...RepositoryOption) repoOpts {
	options := repoOpts{
		log:         slog.Default(),
		metrics:     NopESMetrics(),
		idGenerator: DefaultIDGenerator(),
	}
	for _, opt := range opts {
		opt.applyToRepository(&options)
	}
	if options.log == nil {
		options.log = slog.Default()
	}
	if options.metrics == nil {
		options.metrics = NopESMetrics()
	}
	if options.idGenerator == nil {
		options.idGenerator = DefaultIDGenerator()
	}
	return options
}

// === save ==

func (o MetadataOption) applyToSaveOptions(options *repoSaveOptions) { options.metadata = o.v }

func newSaveOptions(opts ...SaveOption) repoSaveOptions {
	options := repoSaveOptions{}
	for _, opt := range opts {
		opt.applyToSaveOptions(&options)
	}
	return options
}
