package applier

// InstanceLabelKey is the well-known label the DR controller replicates
// Secrets and ConfigMaps by, per spec.md §4.6 ("every Secret and ConfigMap
// labelled app.kubernetes.io/instance=<app>").
const InstanceLabelKey = "app.kubernetes.io/instance"

// InstanceSelector builds the label selector string for appName's
// replicated Secrets/ConfigMaps.
func InstanceSelector(appName string) string {
	return InstanceLabelKey + "=" + appName
}

// InstanceLabels builds the label map a newly-created replicated object
// should carry.
func InstanceLabels(appName string) map[string]string {
	return map[string]string{InstanceLabelKey: appName}
}

// StripServerFields removes the metadata fields that must not be carried
// across when replicating a live object to another cluster (resourceVersion,
// uid, managedFields, creationTimestamp, selfLink, generation), matching the Rust original's
// intent to re-apply a clean copy rather than mirror server-assigned state.
func StripServerFields(meta map[string]interface{}) {
	if meta == nil {
		return
	}
	for _, k := range []string{"resourceVersion", "uid", "managedFields", "creationTimestamp", "selfLink", "generation"} {
		delete(meta, k)
	}
}
