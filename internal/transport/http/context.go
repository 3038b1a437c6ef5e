// Copyright 2026 The Atelier Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"context"

	"github.com/atelierhq/atelier/internal/identity"
)

type contextKey string

const identityKey contextKey = "identity"

func withIdentity(ctx context.Context, ident *identity.Identity) context.Context {
	return context.WithValue(ctx, identityKey, ident)
}

// GetIdentity retrieves the authenticated identity from context.
func GetIdentity(ctx context.Context) *identity.Identity {
	if val, ok := ctx.Value(identityKey).(*identity.Identity); ok {
		return val
	}
	return nil
}

// GetUserID retrieves the authenticated User ID from context.
func GetUserID(ctx context.Context) string {
	if ident := GetIdentity(ctx); ident != nil {
		return ident.UserID
	}
	return ""
}
