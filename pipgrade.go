// Package pipgrade analyzes pip requirements files and recommends safe
// version upgrades, checked against a PyPI-compatible index.
//
// The workflow has three stages. The manifest package parses
// requirements and constraint files into Requirement values. The check
// package asks the index for release metadata and recommends, for each
// requirement, the newest stable version that does not cross a major
// version boundary. The resolve package then reconciles those
// recommendations against the packages' declared dependencies,
// downgrading or holding back versions that would conflict.
//
// Basic usage:
//
//	reqs, err := manifest.NewParser().ParseFile("requirements.txt")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	store := registry.NewStore()
//	pkgs, err := check.NewChecker(store).RecommendBatch(ctx, reqs)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := resolve.NewResolver(store).Resolve(ctx, pkgs)
//	if err != nil {
//		log.Fatal(err)
//	}
//	for name, res := range result.Resolutions {
//		fmt.Println(name, res.Resolved, res.Status)
//	}
package pipgrade

import (
	"github.com/pipgrade/pipgrade/internal/core"
)

// Re-export types from internal/core
type (
	// Package is the upgrade assessment for one requirement.
	Package = core.Package

	// UpdateType classifies the jump from current to recommended
	// version.
	UpdateType = core.UpdateType

	// Conflict records one package's declared dependency that a
	// proposed version of another package would violate.
	Conflict = core.Conflict

	// ConflictSet groups the conflicts targeting a single package.
	ConflictSet = core.ConflictSet

	// PackageResolution is the per-package outcome of conflict
	// resolution.
	PackageResolution = core.PackageResolution

	// ResolutionStatus labels how a package's version fared during
	// resolution.
	ResolutionStatus = core.ResolutionStatus

	// Result is the outcome of a full resolution run.
	Result = core.Result
)

// Re-export constants
const (
	UpdateMajor     = core.UpdateMajor
	UpdateMinor     = core.UpdateMinor
	UpdatePatch     = core.UpdatePatch
	UpdateNew       = core.UpdateNew
	UpdateSame      = core.UpdateSame
	UpdateDowngrade = core.UpdateDowngrade

	StatusKeptRecommended = core.StatusKeptRecommended
	StatusUpgraded        = core.StatusUpgraded
	StatusDowngraded      = core.StatusDowngraded
	StatusConstrained     = core.StatusConstrained
	StatusKeptCurrent     = core.StatusKeptCurrent
)

// NewConflict records that declarer@declarerVersion requires target to
// satisfy spec, which the violating version does not.
var NewConflict = core.NewConflict
