// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package netmon watches backend reachability.
//
// A Monitor probes the backend on a fixed interval and reports status
// transitions. Going offline while a cloud model is selected forces the
// selection onto the first available local model, exactly once per
// transition; staying offline produces no further reactions, and coming
// back online is a pure status change that never touches the selection.
package netmon
