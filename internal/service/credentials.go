package service

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/grpc/metadata"

	"github.com/vyrodovalexey/repogate/internal/auth"
)

// Metadata keys carrying caller credentials.
const (
	MetadataAuthorization = "authorization"
	MetadataSystem        = "x-repogate-system"
	MetadataResourcePath  = "x-resource-path"
)

const (
	bearerPrefix = "bearer "
	basicPrefix  = "basic "
)

// credentialFromMetadata builds the credential presented in md. It returns nil when md
// carries none.
func credentialFromMetadata(md metadata.MD) (auth.Credential, error) {
	if v := first(md, MetadataSystem); v != "" {
		system, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be a boolean", auth.ErrMalformedCredential, MetadataSystem)
		}
		if system {
			return &auth.SystemCredential{}, nil
		}
	}

	header := first(md, MetadataAuthorization)
	if header == "" {
		return nil, nil
	}

	switch lower := strings.ToLower(header); {
	case strings.HasPrefix(lower, bearerPrefix):
		token := strings.TrimSpace(header[len(bearerPrefix):])
		cred := &auth.TokenCredential{Token: token}
		if p := first(md, MetadataResourcePath); p != "" {
			cred.WithAttribute(auth.AttrResourcePath, p)
		}
		return cred, nil
	case strings.HasPrefix(lower, basicPrefix):
		return basicCredential(strings.TrimSpace(header[len(basicPrefix):]))
	default:
		return nil, fmt.Errorf("%w: unsupported authorization scheme", auth.ErrMalformedCredential)
	}
}

func basicCredential(encoded string) (auth.Credential, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid basic authorization encoding", auth.ErrMalformedCredential)
	}
	userID, password, ok := strings.Cut(string(raw), ":")
	if !ok || userID == "" {
		return nil, fmt.Errorf("%w: basic authorization must be user:password", auth.ErrMalformedCredential)
	}
	return &auth.PasswordCredential{UserID: userID, Password: password}, nil
}

func first(md metadata.MD, key string) string {
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}
