/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"testing"

	"github.com/rtpmidi-go/core/session"
	"github.com/rtpmidi-go/core/transport"
)

func TestPrintPeerTableDoesNotPanicOnEmptyOrPopulated(t *testing.T) {
	printPeerTable(nil)
	printPeerTable([]transport.PeerInfo{
		{ID: "a", State: session.Established, Offset: 12.5, RTT: 30, Quality: 0.97},
		{ID: "b", State: session.Syncing, Offset: 0, RTT: 0, Quality: 0},
	})
}
