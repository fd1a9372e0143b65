package opentargets

const searchQuery = `
query Search($queryString: String!, $entityNames: [String!], $size: Int!, $index: Int!) {
  search(queryString: $queryString, entityNames: $entityNames, page: {size: $size, index: $index}) {
    total
    hits {
      id
      entity
      name
      description
    }
  }
}`

const targetQuery = `
query TargetDetails($ensemblId: String!) {
  target(ensemblId: $ensemblId) {
    id
    approvedSymbol
    approvedName
    biotype
    genomicLocation {
      chromosome
      start
      end
      strand
    }
    functionDescriptions
  }
}`

const targetDiseasesQuery = `
query TargetAssociatedDiseases($ensemblId: String!, $size: Int!, $index: Int!) {
  target(ensemblId: $ensemblId) {
    id
    approvedSymbol
    approvedName
    associatedDiseases(page: {size: $size, index: $index}) {
      count
      rows {
        disease {
          id
          name
        }
        score
      }
    }
  }
}`

const diseaseTargetsQuery = `
query DiseaseAssociatedTargets($efoId: String!, $size: Int!, $index: Int!) {
  disease(efoId: $efoId) {
    id
    name
    associatedTargets(page: {size: $size, index: $index}) {
      count
      rows {
        target {
          id
          approvedSymbol
          approvedName
        }
        score
      }
    }
  }
}`

const drugQuery = `
query DrugDetails($chemblId: String!) {
  drug(chemblId: $chemblId) {
    id
    name
    drugType
    description
    maximumClinicalTrialPhase
    isApproved
    hasBeenWithdrawn
    synonyms
    tradeNames
    mechanismsOfAction {
      rows {
        mechanismOfAction
        actionType
        targets {
          id
          approvedSymbol
        }
      }
    }
  }
}`
