package catalog

import "github.com/llmkube/llmkube/pkg/provider"

// defaultModels is the built-in catalog used when no catalog file is
// configured.
var defaultModels = []Model{
	{
		ID:             "meta-llama/Llama-3.1-8B-Instruct",
		Name:           "Llama 3.1 8B Instruct",
		ParameterCount: 8e9,
		Size:           "8B",
		MinGPUMemory:   "16GB",
		Engines:        []string{"vllm", "sglang", "trtllm"},
		Gated:          true,
	},
	{
		ID:             "meta-llama/Llama-3.1-70B-Instruct",
		Name:           "Llama 3.1 70B Instruct",
		ParameterCount: 70e9,
		Size:           "70B",
		MinGPUMemory:   "140GB",
		MinGPUs:        2,
		Engines:        []string{"vllm", "sglang", "trtllm"},
		Gated:          true,
	},
	{
		ID:             "Qwen/Qwen2.5-7B-Instruct",
		Name:           "Qwen 2.5 7B Instruct",
		ParameterCount: 7e9,
		Size:           "7B",
		MinGPUMemory:   "16GB",
		Engines:        []string{"vllm", "sglang"},
	},
	{
		ID:             "Qwen/Qwen2.5-72B-Instruct",
		Name:           "Qwen 2.5 72B Instruct",
		ParameterCount: 72e9,
		Size:           "72B",
		MinGPUs:        2,
		Engines:        []string{"vllm", "sglang"},
	},
	{
		ID:             "microsoft/Phi-4-mini-instruct",
		Name:           "Phi 4 Mini Instruct",
		ParameterCount: 3.8e9,
		Size:           "3.8B",
		MinGPUMemory:   "8GB",
		Engines:        []string{"vllm"},
	},
	{
		ID:   "TheBloke/TinyLlama-1.1B-Chat-v1.0-GGUF",
		Name: "TinyLlama 1.1B Chat GGUF",
		Size: "1.1B",
	},
	{
		ID:             "deepseek-ai/DeepSeek-R1-Distill-Qwen-32B",
		Name:           "DeepSeek R1 Distill Qwen 32B",
		ParameterCount: 32e9,
		Size:           "32B",
		MinGPUMemory:   "80GB",
		Engines:        []string{"vllm", "sglang"},
	},
}

// defaultPremade is the built-in Kaito premade model catalog.
var defaultPremade = []provider.PremadeModel{
	{
		ID:          "phi-4-mini",
		Image:       "mcr.microsoft.com/aks/kaito/kaito-phi-4-mini:1.0.0",
		ModelName:   "phi-4-mini-instruct",
		ComputeType: "gpu",
	},
	{
		ID:          "mistral-7b-instruct",
		Image:       "mcr.microsoft.com/aks/kaito/kaito-mistral-7b-instruct:1.0.0",
		ModelName:   "mistral-7b-instruct",
		ComputeType: "gpu",
	},
	{
		ID:          "falcon-7b",
		Image:       "mcr.microsoft.com/aks/kaito/kaito-falcon-7b:1.0.0",
		ModelName:   "falcon-7b",
		ComputeType: "gpu",
	},
}

// Default returns the catalog built from the compiled-in entries.
func Default() *Catalog {
	return New(defaultModels, defaultPremade)
}
