// Package rbac verifies startup permissions and provider CRD presence.
package rbac

import (
	"context"
	"fmt"
	"strings"

	authv1 "k8s.io/api/authorization/v1"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	apiextensionsclientset "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/klog/v2"

	"github.com/llmkube/llmkube/pkg/provider"
)

// RequiredPermission represents a permission that needs to be verified
type RequiredPermission struct {
	APIGroup  string
	Resource  string
	Verb      string
	Namespace string // empty for cluster-scoped
}

// GetRequiredPermissions returns the permissions the API needs: CRD
// discovery, the full custom-resource lifecycle in each provider namespace,
// and cluster-wide pod/node reads for capacity inspection.
func GetRequiredPermissions(registry *provider.Registry) []RequiredPermission {
	permissions := []RequiredPermission{
		{APIGroup: "apiextensions.k8s.io", Resource: "customresourcedefinitions", Verb: "get"},
		{APIGroup: "apiextensions.k8s.io", Resource: "customresourcedefinitions", Verb: "list"},
		{APIGroup: "", Resource: "pods", Verb: "list"},
		{APIGroup: "", Resource: "nodes", Verb: "list"},
	}

	for _, p := range registry.List() {
		namespace := p.Metadata().DefaultNamespace
		for _, crd := range provider.CRDConfigsOf(p) {
			for _, verb := range []string{"get", "list", "create", "delete"} {
				permissions = append(permissions, RequiredPermission{
					APIGroup:  crd.Group,
					Resource:  crd.Plural,
					Verb:      verb,
					Namespace: namespace,
				})
			}
		}
	}

	return permissions
}

// VerifyPermissions checks that the current service account holds every
// required permission, reporting all missing ones at once.
func VerifyPermissions(ctx context.Context, clientset kubernetes.Interface, registry *provider.Registry) error {
	permissions := GetRequiredPermissions(registry)
	var missing []string

	for _, perm := range permissions {
		allowed, err := CheckPermission(ctx, clientset, perm)
		if err != nil {
			return fmt.Errorf("failed to check permission %s/%s:%s: %w", perm.APIGroup, perm.Resource, perm.Verb, err)
		}

		if !allowed {
			scope := "cluster-scoped"
			if perm.Namespace != "" {
				scope = fmt.Sprintf("namespace=%s", perm.Namespace)
			}
			missing = append(missing, fmt.Sprintf("  - %s %s.%s (%s)", perm.Verb, perm.Resource, perm.APIGroup, scope))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required RBAC permissions:\n%s", strings.Join(missing, "\n"))
	}

	return nil
}

// CRDStatus reports whether one provider custom resource type is installed
// and established.
type CRDStatus struct {
	Provider    string `json:"provider"`
	CRD         string `json:"crd"`
	Installed   bool   `json:"installed"`
	Established bool   `json:"established"`
}

// VerifyProviderCRDs checks which provider CRDs are installed. A missing CRD
// is not fatal at startup: the provider is simply unusable until its
// operator is installed.
func VerifyProviderCRDs(ctx context.Context, client apiextensionsclientset.Interface, registry *provider.Registry) ([]CRDStatus, error) {
	var statuses []CRDStatus

	for _, p := range registry.List() {
		for _, crd := range provider.CRDConfigsOf(p) {
			name := fmt.Sprintf("%s.%s", crd.Plural, crd.Group)
			st := CRDStatus{Provider: p.Metadata().ID, CRD: name}

			obj, err := client.ApiextensionsV1().CustomResourceDefinitions().Get(ctx, name, metav1.GetOptions{})
			if err != nil {
				if !apierrors.IsNotFound(err) {
					return nil, fmt.Errorf("failed to check CRD %s: %w", name, err)
				}
				klog.Warningf("CRD %s not installed; provider %s is unavailable", name, p.Metadata().ID)
				statuses = append(statuses, st)
				continue
			}

			st.Installed = true
			for _, condition := range obj.Status.Conditions {
				if condition.Type == apiextensionsv1.Established && condition.Status == apiextensionsv1.ConditionTrue {
					st.Established = true
				}
			}
			statuses = append(statuses, st)
		}
	}

	return statuses, nil
}

// CheckPermission verifies if a specific permission is granted
func CheckPermission(ctx context.Context, clientset kubernetes.Interface, perm RequiredPermission) (bool, error) {
	sar := &authv1.SelfSubjectAccessReview{
		Spec: authv1.SelfSubjectAccessReviewSpec{
			ResourceAttributes: &authv1.ResourceAttributes{
				Verb:      perm.Verb,
				Group:     perm.APIGroup,
				Resource:  perm.Resource,
				Namespace: perm.Namespace,
			},
		},
	}

	result, err := clientset.AuthorizationV1().SelfSubjectAccessReviews().Create(ctx, sar, metav1.CreateOptions{})
	if err != nil {
		return false, err
	}

	return result.Status.Allowed, nil
}
