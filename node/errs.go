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

package node

import "fmt"

// ErrNoFloodingDomain is returned by New when cfg has no domain marked
// flooding; domain.Manager.Register already enforces at most one, but a
// node additionally requires exactly one before it can forward TC.
var ErrNoFloodingDomain = fmt.Errorf("node: no flooding domain configured")

// ErrUnknownMessageType is logged by the Driver, which then drops the
// message, when a decoded message's type is neither MsgHello nor MsgTC.
var ErrUnknownMessageType = fmt.Errorf("node: unknown message type")

// ErrSelfOriginated names the drop of a TC message whose originator is
// this node itself. OnTC does not return it: it reports such a message
// as not to be forwarded, with a nil error.
var ErrSelfOriginated = fmt.Errorf("node: dropping message originated by self")
