// Package status folds live cluster state (custom resource, pods,
// conditions) into one normalized deployment phase.
package status

import (
	"time"
)

// Phase is the normalized deployment lifecycle phase.
type Phase string

const (
	PhasePending     Phase = "Pending"
	PhaseDeploying   Phase = "Deploying"
	PhaseRunning     Phase = "Running"
	PhaseFailed      Phase = "Failed"
	PhaseTerminating Phase = "Terminating"
)

// PodStatus is the per-pod slice of a deployment status.
type PodStatus struct {
	Name     string `json:"name"`
	Phase    string `json:"phase"`
	Ready    bool   `json:"ready"`
	Restarts int32  `json:"restarts"`
	Node     string `json:"node"`
}

// DeploymentStatus is rebuilt on every read from live cluster data. It is
// never the source of truth.
type DeploymentStatus struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	ModelID   string `json:"modelId"`
	Provider  string `json:"provider"`
	Phase     Phase  `json:"phase"`

	DesiredReplicas   int `json:"desiredReplicas"`
	ReadyReplicas     int `json:"readyReplicas"`
	AvailableReplicas int `json:"availableReplicas"`

	// Populated only for disaggregated prefill/decode deployments.
	PrefillDesired int `json:"prefillDesired,omitempty"`
	PrefillReady   int `json:"prefillReady,omitempty"`
	DecodeDesired  int `json:"decodeDesired,omitempty"`
	DecodeReady    int `json:"decodeReady,omitempty"`

	Pods        []PodStatus `json:"pods"`
	CreatedAt   time.Time   `json:"createdAt"`
	ServiceName string      `json:"serviceName,omitempty"`
}
