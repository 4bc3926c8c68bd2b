package provider

import "strconv"

// Labels stamped on every generated resource.
const (
	LabelManagedBy = "app.kubernetes.io/managed-by"
	LabelName      = "app.kubernetes.io/name"
	LabelProvider  = "llmkube.io/provider"

	// AnnotationModel records the model id, which may contain characters
	// that are not label-safe.
	AnnotationModel = "llmkube.io/model"

	managedByValue = "llmkube"

	gpuResourceName = "nvidia.com/gpu"
)

// manifestMetadata builds the metadata block shared by all generated
// resources.
func manifestMetadata(cfg *DeploymentConfig) map[string]interface{} {
	return map[string]interface{}{
		"name":      cfg.Name,
		"namespace": cfg.Namespace,
		"labels": map[string]interface{}{
			LabelName:      cfg.Name,
			LabelManagedBy: managedByValue,
			LabelProvider:  cfg.ProviderID,
		},
		"annotations": map[string]interface{}{
			AnnotationModel: cfg.ModelID,
		},
	}
}

// gpuLimits builds a resources block requesting count GPUs via the NVIDIA
// device plugin resource name.
func gpuLimits(count int) map[string]interface{} {
	return map[string]interface{}{
		"limits": map[string]interface{}{
			gpuResourceName: strconv.Itoa(count),
		},
	}
}

// DeploymentSelector returns the label selector matching the pods of a
// generated deployment.
func DeploymentSelector(name string) string {
	return LabelName + "=" + name
}
