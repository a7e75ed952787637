// Package inspector provides a reusable pipeline failure-triage service that can be embedded into other Go applications.
//
// # Overview
//
// The inspector is a stateless, read-only triage service over a GitLab project: it consolidates
// retried job executions into per-name final statuses, classifies each failure as an
// infrastructure or script problem, and correlates a pipeline's mandatory failures against the
// merge-request pipeline that preceded the merge.
//
// # Basic Usage
//
// Create an inspector programmatically:
//
//	cfg := &inspector.Config{
//		Server: inspector.ServerConfig{
//			Port:         8080,
//			ReadTimeout:  30 * time.Second,
//			WriteTimeout: 30 * time.Second,
//		},
//		Auth: inspector.AuthConfig{
//			APIKeys: []inspector.APIKey{
//				{Name: "my-app", Key: "secret-key-here"},
//			},
//		},
//		GitLab: inspector.GitLabConfig{
//			URL:       "https://gitlab.example.com",
//			Token:     os.Getenv("GITLAB_TOKEN"),
//			ProjectID: "group/project",
//		},
//		Logging: inspector.LoggingConfig{
//			Level:  "info",
//			Format: "json",
//		},
//	}
//
//	ins, err := inspector.New(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := ins.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// # Using with Existing HTTP Server
//
// Integrate the inspector into an existing HTTP server:
//
//	ins, err := inspector.New(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Mount the inspector under a specific path
//	http.Handle("/triage/", http.StripPrefix("/triage", ins.Handler()))
//
//	http.ListenAndServe(":8080", nil)
//
// # Direct Service Access
//
// Access the service layer directly for programmatic control:
//
//	svc := ins.Service()
//
//	report, err := svc.InspectPipeline(ctx, 123456)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	for _, job := range report.MandatoryFailures() {
//		fmt.Printf("%s failed: %s/%s\n", job.DisplayName, job.Type, job.Reason)
//	}
//
//	skipped, err := svc.SkippedOnPR(ctx, 123456)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("skipped on PR: %v\n", skipped.SkippedJobs)
package inspector
