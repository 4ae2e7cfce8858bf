package goSession

import (
	"context"
	"testing"
)

func BenchmarkVerifyAccess(b *testing.B) {
	env := newTestEnv(b, testConfig())
	pair := issuePair(b, env, "bench-user")
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok := env.svc.VerifyToken(ctx, pair.AccessToken); !ok {
			b.Fatal("verify failed")
		}
	}
}

func BenchmarkVerifyRefresh(b *testing.B) {
	env := newTestEnv(b, testConfig())
	pair := issuePair(b, env, "bench-user")
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok := env.svc.VerifyToken(ctx, pair.RefreshToken); !ok {
			b.Fatal("verify failed")
		}
	}
}

func BenchmarkRefresh(b *testing.B) {
	env := newTestEnv(b, testConfig())
	pair := issuePair(b, env, "bench-user")
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := env.svc.RefreshAccessToken(ctx, pair.RefreshToken); err != nil {
			b.Fatalf("refresh failed: %v", err)
		}
	}
}

func BenchmarkGenerateTokenPair(b *testing.B) {
	env := newTestEnv(b, testConfig())
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := env.svc.GenerateTokenPair(ctx, "bench-user", "bench@example.com"); err != nil {
			b.Fatalf("issue failed: %v", err)
		}
	}
}
