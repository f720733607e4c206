// Package openai implements the ai services over OpenAI-compatible chat APIs.
//
// Requests go through langchaingo with temperature 0 and JSON mode. Small
// local models often wrap JSON in markdown fences or leave trailing commas,
// so responses are cleaned and repaired before decoding, and a request is
// retried a few times before the error is returned.
//
// # Usage
//
//	config := ai.NewConfig(
//	    ai.WithHost("http://localhost:11434"), // /v1 added automatically
//	    ai.WithModel("qwen2.5:3b"),
//	)
//
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	assessment, err := provider.QualityAssessor().AssessQuality(ctx, article)
package openai
