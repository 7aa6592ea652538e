package usecase

import "github.com/uptiq/policy-rag/internal/core/domain"

// DefaultRouteLabels is the closed set of policy sources in the reference corpus.
func DefaultRouteLabels() []string {
	return []string{
		"employee_code_of_conduct.txt",
		"leave_policy.txt",
		"work_from_home_policy.txt",
		"payroll_and_compensation_policy.txt",
		"performance_review_policy.txt",
		"it_and_security_policy.txt",
	}
}

func DefaultDomainTemplates() []domain.DomainTemplate {
	return []domain.DomainTemplate{
		{
			Name: "hr_template",
			Text: `You are an HR policies assistant for the company Uptiq.
You answer questions about leave policies, payroll, employee benefits, and workplace compliance.
Always explain clearly and reference HR rules.

Here is a question:
{query}`,
		},
		{
			Name: "it_template",
			Text: `You are an IT helpdesk expert.
You answer questions related to technical troubleshooting, software, hardware,
network issues, and security guidelines in a simple and actionable way.

Here is a question:
{query}`,
		},
		{
			Name: "law_template",
			Text: `You are a legal advisor.
You explain laws, regulations, workplace compliance, contracts, and employee rights
in a clear and simple manner.
Always include a disclaimer that this is not professional legal advice.

Here is a question:
{query}`,
		},
	}
}
