/*
	Package server runs omerotools as a long-lived script service.  Scripts can be
	started over HTTP, where requests are authorized with JSON Web Tokens, or
	through the RPC command service used by the omerotools executable.  Every run
	is recorded in the report store and, if Kafka is configured, published to the
	activity log.

	The service is configured with a TOML file:

		[omero]
		server = "outreach.openmicroscopy.org"
		port = 4064
		web_url = "https://outreach.openmicroscopy.org"
		user = "trainer-1"
		password = "secret"
		timeout = 60
		image_cache_mb = 16

		[server]
		httpAddress = "localhost:8000"
		rpcAddress = "localhost:8001"
		corsdomains = ["*"]
		allowProfiling = false
		report_retention = 30      # days

		[logging]
		logfile = "logs/omerotools.log"
		max_log_size = 500   # MB
		max_log_age = 30     # days

		[export]
		location = "exports"   # or "gs://bucket", "s3://bucket?region=..."
		compression = "gzip"

		[reports]
		path = "reports"
		compression = "snappy"

		[kafka]
		servers = ["kafka1:9092"]
		topicActivity = "omerotools-activity"

		[auth]
		secret_key = "..."
		auth_file = "auth.json"

	Relative paths are relative to the TOML file.
*/
package server
