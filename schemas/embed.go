// Package schemas holds the JSON Schemas of the files this system publishes.
package schemas

import _ "embed"

// CVData is the schema of the cv-data.json snapshot.
//
//go:embed cv_data.schema.json
var CVData string

// Manifest is the schema of the files array sent with a deployment.
//
//go:embed manifest.schema.json
var Manifest string

// On-disk names of the embedded schemas, relative to this directory.
const (
	CVDataFile   = "cv_data.schema.json"
	ManifestFile = "manifest.schema.json"
)
