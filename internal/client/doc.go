// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package client assembles the sync daemon.
//
// It wires storage, the remote transport, the engine services, background
// workers and the local control API into a single process lifecycle.
package client
