package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Domain == "" {
		cfg.Domain = "medicare"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/shirabe/data/corpus.db"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "hashing-384"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Vector.IndexType == "" {
		cfg.Vector.IndexType = "memory"
	}
	if cfg.Retrieval.DefaultK == 0 {
		cfg.Retrieval.DefaultK = 8
	}
	if cfg.Retrieval.SemanticWeight == 0 {
		cfg.Retrieval.SemanticWeight = 0.6
	}
	if cfg.Retrieval.KeywordWeight == 0 {
		cfg.Retrieval.KeywordWeight = 0.4
	}
	if cfg.Retrieval.RRFK == 0 {
		cfg.Retrieval.RRFK = 60
	}
	if cfg.Retrieval.MinPerSource == 0 {
		cfg.Retrieval.MinPerSource = 2
	}
	if cfg.Retrieval.MaxVariants == 0 {
		cfg.Retrieval.MaxVariants = 6
	}
	if cfg.Retrieval.CandidatesPerVariant == 0 {
		cfg.Retrieval.CandidatesPerVariant = 20
	}
	if cfg.Retrieval.QueryTimeoutMs == 0 {
		cfg.Retrieval.QueryTimeoutMs = 10000
	}
	if cfg.Retrieval.VariantTimeoutMs == 0 {
		cfg.Retrieval.VariantTimeoutMs = 3000
	}
	if cfg.Retrieval.SearchWorkers == 0 {
		cfg.Retrieval.SearchWorkers = 4
	}
	if cfg.Eval.MinKeywordFraction == 0 {
		cfg.Eval.MinKeywordFraction = 0.5
	}
}
