package artifacts

import _ "embed"

// Embedded default templates

//go:embed defaults/config.yaml
var WorkspaceConfig []byte
