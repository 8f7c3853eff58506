package auditor

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog/log"
)

const unknownAccount = "unknown"

// accountID asks STS who we are. The account only labels the report, so a
// failed lookup is logged and reported as "unknown".
func (a *Auditor) accountID(ctx context.Context) string {
	if a.stsClient == nil {
		return unknownAccount
	}

	output, err := a.stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		log.Warn().Err(err).Msg("account lookup failed")
		return unknownAccount
	}
	if output.Account == nil {
		return unknownAccount
	}
	return aws.ToString(output.Account)
}

// accountAlias returns the account's IAM alias, or "" when it has none or
// the caller may not list it. An account has at most one alias.
func (a *Auditor) accountAlias(ctx context.Context) string {
	if a.iamClient == nil {
		return ""
	}

	output, err := a.iamClient.ListAccountAliases(ctx, &iam.ListAccountAliasesInput{})
	if err != nil {
		log.Debug().Err(err).Msg("account alias lookup failed")
		return ""
	}
	if len(output.AccountAliases) == 0 {
		return ""
	}
	return output.AccountAliases[0]
}
