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

package rfc5444

import "errors"

// Decode errors, per §4.2/§7 of the spec.
var (
	// ErrIncomplete is returned when a header promises more bytes than the
	// buffer actually holds.
	ErrIncomplete = errors.New("rfc5444: incomplete message")
	// ErrTerminated is returned when the buffer ends mid-field.
	ErrTerminated = errors.New("rfc5444: packet terminated unexpectedly")
	// ErrMissingMandatoryTLV is returned when a TLV named by the session's
	// mandatory whitelist for this message type is absent.
	ErrMissingMandatoryTLV = errors.New("rfc5444: missing mandatory tlv")
	// ErrIllegalTLVLength is returned when a TLV's length falls outside the
	// [min,max] range registered for its (type, ext-type).
	ErrIllegalTLVLength = errors.New("rfc5444: illegal tlv length")
	// ErrMalformed is returned for any other structurally invalid packet; a
	// malformed packet cannot be trusted for its own length fields, so the
	// remainder is not attempted.
	ErrMalformed = errors.New("rfc5444: malformed packet")
)
