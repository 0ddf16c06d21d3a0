// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package version

import "fmt"

var (
	version   = "0.3.0"
	buildTime = "none"
	buildHash = "none"
)

func GetVersion() string {
	return version
}

func GetBuildTime() string {
	return buildTime
}

func GetVersionString() string {
	return fmt.Sprintf("tide %s (%s, built %s)", version, buildHash, buildTime)
}

func GetServerVersion() string {
	return "Tide-" + version
}
