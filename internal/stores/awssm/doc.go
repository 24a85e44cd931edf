// Package awssm fetches secrets from AWS Secrets Manager and SSM Parameter
// Store.
//
// References name the regional service endpoint as their host:
//
//	keyvault://secretsmanager.us-east-1.amazonaws.com/secrets/db-password
//	keyvault://secretsmanager.us-east-1.amazonaws.com/secrets/prod%2Fdb/AWSPREVIOUS
//	keyvault://ssm.eu-west-1.amazonaws.com/parameters/prod/db/password:3
//
// Secrets Manager names containing a slash are percent-escaped in the path.
// The optional last segment is a version id when it is a UUID and a staging
// label otherwise. Parameter Store paths map directly onto the parameter
// name, with an optional ":<version>" or ":<label>" selector.
package awssm
